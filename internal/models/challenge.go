package models

import "strings"

// technicalPrefix marks autograded challenges by naming convention. A
// challenge whose name starts with this token is graded by the external
// autograder rather than by a tutor.
const technicalPrefix = "TECH"

// Challenge mirrors the host platform's challenges table.
type Challenge struct {
	ID       uint              `gorm:"primaryKey" json:"id"`
	Name     string            `gorm:"size:255;not null" json:"name"`
	Category string            `gorm:"size:128" json:"category"`
	Value    int               `json:"value"`
	Answers  []ChallengeAnswer `gorm:"foreignKey:ChallengeID" json:"answers,omitempty"`
}

// ChallengeAnswer is one accepted answer for a challenge.
type ChallengeAnswer struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ChallengeID uint   `gorm:"not null;index" json:"challenge_id"`
	Kind        string `gorm:"size:32;not null" json:"kind"`
	Content     string `gorm:"type:text;not null" json:"content"`
}

const (
	// AnswerKindStatic matches by case-insensitive trimmed equality.
	AnswerKindStatic = "static"
	// AnswerKindRegex matches by full regular-expression match.
	AnswerKindRegex = "regex"
)

// IsTechnical reports whether the challenge is autograded, identified by the
// TECH name-prefix convention carried over from the host platform content.
func (c Challenge) IsTechnical() bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimLeft(c.Name, " ")), technicalPrefix)
}

// DisplayName strips the TECH marker from autograded challenge names so
// reports show the human-facing title. Non-technical names pass through.
func (c Challenge) DisplayName() string {
	if !c.IsTechnical() {
		return c.Name
	}

	stripped := strings.TrimLeft(c.Name, " ")
	remainder := strings.TrimLeft(stripped[len(technicalPrefix):], " :-_")
	if remainder == "" {
		return c.Name
	}

	return remainder
}

// MaxValue returns the challenge point value, defaulting to 100 when the
// host row carries no value.
func (c Challenge) MaxValue() int {
	if c.Value <= 0 {
		return 100
	}

	return c.Value
}
