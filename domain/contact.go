package domain

import "time"

// Contact has no identity outside its session.
type Contact struct {
	FullName string
	Phone    string
	AddedAt  time.Time
}
