package dummydb

import (
	"sync"

	"github.com/Shukurulla/dogerek-tutor/core/attendance"
	"github.com/Shukurulla/dogerek-tutor/core/club"
	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

type (
	DB struct {
		tutor      *tutorTable
		club       *clubTable
		attendance *attendanceTable
	}

	tutorTable struct {
		sync.RWMutex
		table map[string]*tutor.Tutor
	}

	clubTable struct {
		sync.RWMutex
		clubs        map[string]*club.Club
		rosters      map[string][]club.Student // clubID -> enrollment order
		applications map[string]*club.Application
	}

	attendanceTable struct {
		sync.RWMutex
		records map[string]*attendance.Record // record ID
	}
)

func Open() (*DB, error) {
	db := &DB{
		tutor: &tutorTable{table: make(map[string]*tutor.Tutor)},
		club: &clubTable{
			clubs:        make(map[string]*club.Club),
			rosters:      make(map[string][]club.Student),
			applications: make(map[string]*club.Application),
		},
		attendance: &attendanceTable{records: make(map[string]*attendance.Record)},
	}
	return db, nil
}
