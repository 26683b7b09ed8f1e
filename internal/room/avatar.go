package room

import (
	"crypto/rand"
	"math/big"

	models "github.com/CodeAndHammer/wordly/internal/models"
)

var (
	avatarEmojis = []string{"🦊", "🐼", "🐨", "🐯", "🦁", "🐸", "🐙", "🦄", "🐝", "🐢", "🦉", "🐧"}
	avatarColors = []string{"#F87171", "#FB923C", "#FACC15", "#4ADE80", "#2DD4BF", "#60A5FA", "#A78BFA", "#F472B6"}
)

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func randomAvatar() models.Avatar {
	return models.Avatar{
		Emoji: avatarEmojis[randomIndex(len(avatarEmojis))],
		Color: avatarColors[randomIndex(len(avatarColors))],
	}
}
