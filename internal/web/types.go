package web

import "time"

type RoomSummary struct {
	Code         string
	Status       string
	Owner        string
	Players      int
	MaxPlayers   int
	Connections  int
	CurrentRound int
	RoundsTotal  int
	Difficulty   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type WordStat struct {
	Word        string
	Category    string
	Difficulty  string
	TimesUsed   int
	SuccessRate float64
}

type PaginationData struct {
	BasePath   string
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

type AdminData struct {
	Rooms       []RoomSummary
	Words       []WordStat
	Persistent  bool
	GeneratedAt time.Time
	Pagination  PaginationData
}
