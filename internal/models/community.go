package models

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
}

type Report struct {
	ID            int64
	Lat           float64
	Lng           float64
	Content       string
	UserID        int64
	Username      string
	Severity      string
	ImageFilename *string
	CreatedAt     time.Time
	ZoneName      string
}
