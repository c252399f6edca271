package model

import (
	"time"
	_ "time/tzdata"
)

// Taipei is the exchange time zone. Falls back to a fixed UTC+8 zone if the
// zone database cannot be loaded (Taiwan has no DST).
var Taipei = loadTaipei()

func loadTaipei() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}
