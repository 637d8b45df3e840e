package tle

import "time"

// Element is one GPS satellite's two-line element set.
type Element struct {
	PRN     int
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Dataset is a parsed TLE file.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Elements  []Element
}
