package game

// Stats tracks a player's solo results across rounds.
type Stats struct {
	GamesPlayed   int `json:"gamesPlayed"`
	Wins          int `json:"wins"`
	WinPercentage int `json:"winPercentage"`
	CurrentStreak int `json:"currentStreak"`
	MaxStreak     int `json:"maxStreak"`
}

func (s *Stats) Record(won bool) {
	s.GamesPlayed++
	if won {
		s.Wins++
		s.CurrentStreak++
		s.MaxStreak = max(s.MaxStreak, s.CurrentStreak)
	} else {
		s.CurrentStreak = 0
	}
	s.WinPercentage = s.Wins * 100 / s.GamesPlayed
}
