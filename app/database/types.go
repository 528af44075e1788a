package database

import (
	"time"
)

const (
	dateSeenLayout  = "2006-01-02"
	timestampLayout = time.RFC3339Nano

	donationColumns = `fingerprint, date, amount, category, grantee, link, why, date_seen`
)

type delivery struct {
	Fingerprint string
	Channel     string
}
