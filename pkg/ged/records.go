package ged

import (
	"strconv"
	"time"
)

const secondsPerDay = 86400

// EventRecord is the persisted form of a NormalizedRow.
type EventRecord struct {
	ID              int64  `parquet:"name=id, type=INT64"`
	CountryID       *int32 `parquet:"name=country_id, type=INT32, repetitiontype=OPTIONAL"`
	Country         string `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year            int32  `parquet:"name=year, type=INT32"`
	DateStart       *int32 `parquet:"name=date_start, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL"`
	DyadNewID       *int64 `parquet:"name=dyad_new_id, type=INT64, repetitiontype=OPTIONAL"`
	TypeOfViolence  *int32 `parquet:"name=type_of_violence, type=INT32, repetitiontype=OPTIONAL"`
	Best            int64  `parquet:"name=best, type=INT64"`
	Low             int64  `parquet:"name=low, type=INT64"`
	High            int64  `parquet:"name=high, type=INT64"`
	DeathsCivilians int64  `parquet:"name=deaths_civilians, type=INT64"`
}

// AggregateRecord is the persisted form of an AggregateRow.
type AggregateRecord struct {
	CountryID          *int32 `parquet:"name=country_id, type=INT32, repetitiontype=OPTIONAL"`
	Country            string `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year               int32  `parquet:"name=year, type=INT32"`
	GedEvents          int64  `parquet:"name=ged_events, type=INT64"`
	GedEventsFatal     int64  `parquet:"name=ged_events_fatal, type=INT64"`
	GedDeathsBest      int64  `parquet:"name=ged_deaths_best, type=INT64"`
	GedDeathsLow       int64  `parquet:"name=ged_deaths_low, type=INT64"`
	GedDeathsHigh      int64  `parquet:"name=ged_deaths_high, type=INT64"`
	GedDeathsCivilians int64  `parquet:"name=ged_deaths_civilians, type=INT64"`
	GedDyads           int64  `parquet:"name=ged_dyads, type=INT64"`
	GedStateEvents     int64  `parquet:"name=ged_state_events, type=INT64"`
	GedNonStateEvents  int64  `parquet:"name=ged_nonstate_events, type=INT64"`
	GedOneSidedEvents  int64  `parquet:"name=ged_onesided_events, type=INT64"`
}

var eventHeader = []string{
	"id", "country_id", "country", "year", "date_start", "dyad_new_id",
	"type_of_violence", "best", "low", "high", "deaths_civilians",
}

var aggregateHeader = []string{
	"country_id", "country", "year", "ged_events", "ged_events_fatal",
	"ged_deaths_best", "ged_deaths_low", "ged_deaths_high", "ged_deaths_civilians",
	"ged_dyads", "ged_state_events", "ged_nonstate_events", "ged_onesided_events",
}

// EventRecords converts normalized rows for persistence.
func EventRecords(rows []NormalizedRow) []EventRecord {
	out := make([]EventRecord, len(rows))
	for i, r := range rows {
		out[i] = EventRecord{
			ID:              r.ID,
			CountryID:       int32Ptr(r.CountryID),
			Country:         r.Country,
			Year:            int32(r.Year),
			DyadNewID:       r.DyadNewID,
			TypeOfViolence:  int32Ptr(r.TypeOfViolence),
			Best:            r.Best,
			Low:             r.Low,
			High:            r.High,
			DeathsCivilians: r.DeathsCivilians,
		}
		if r.DateStart.Valid {
			days := int32(r.DateStart.Time.Unix() / secondsPerDay)
			out[i].DateStart = &days
		}
	}
	return out
}

// AggregateRecords converts aggregate rows for persistence.
func AggregateRecords(rows []AggregateRow) []AggregateRecord {
	out := make([]AggregateRecord, len(rows))
	for i, r := range rows {
		out[i] = AggregateRecord{
			CountryID:          int32Ptr(r.CountryID),
			Country:            r.Country,
			Year:               int32(r.Year),
			GedEvents:          r.Events,
			GedEventsFatal:     r.EventsFatal,
			GedDeathsBest:      r.DeathsBest,
			GedDeathsLow:       r.DeathsLow,
			GedDeathsHigh:      r.DeathsHigh,
			GedDeathsCivilians: r.DeathsCivilians,
			GedDyads:           r.Dyads,
			GedStateEvents:     r.StateEvents,
			GedNonStateEvents:  r.NonStateEvents,
			GedOneSidedEvents:  r.OneSidedEvents,
		}
	}
	return out
}

// CSVHeader implements export.Record.
func (EventRecord) CSVHeader() []string { return eventHeader }

// CSVValues implements export.Record.
func (r EventRecord) CSVValues() []string {
	date := ""
	if r.DateStart != nil {
		date = time.Unix(int64(*r.DateStart)*secondsPerDay, 0).UTC().Format(time.DateOnly)
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		optInt32(r.CountryID),
		r.Country,
		strconv.Itoa(int(r.Year)),
		date,
		optInt64(r.DyadNewID),
		optInt32(r.TypeOfViolence),
		strconv.FormatInt(r.Best, 10),
		strconv.FormatInt(r.Low, 10),
		strconv.FormatInt(r.High, 10),
		strconv.FormatInt(r.DeathsCivilians, 10),
	}
}

// CSVHeader implements export.Record.
func (AggregateRecord) CSVHeader() []string { return aggregateHeader }

// CSVValues implements export.Record.
func (r AggregateRecord) CSVValues() []string {
	return []string{
		optInt32(r.CountryID),
		r.Country,
		strconv.Itoa(int(r.Year)),
		strconv.FormatInt(r.GedEvents, 10),
		strconv.FormatInt(r.GedEventsFatal, 10),
		strconv.FormatInt(r.GedDeathsBest, 10),
		strconv.FormatInt(r.GedDeathsLow, 10),
		strconv.FormatInt(r.GedDeathsHigh, 10),
		strconv.FormatInt(r.GedDeathsCivilians, 10),
		strconv.FormatInt(r.GedDyads, 10),
		strconv.FormatInt(r.GedStateEvents, 10),
		strconv.FormatInt(r.GedNonStateEvents, 10),
		strconv.FormatInt(r.GedOneSidedEvents, 10),
	}
}

func int32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}

func optInt32(v *int32) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(int(*v))
}

func optInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
