// Package filter implements the client subscription filter language:
// r/lat/lon/km (radius), a/lat1/lon1/lat2/lon2 (box), p/prefix,
// b/call (budlist), t/types, o/object, and "all".
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"aprsd/internal/aprs"
)

type Kind int

const (
	KindAll Kind = iota
	KindArea
	KindBox
	KindPrefix
	KindBudlist
	KindType
	KindObject
)

type Filter struct {
	Kind Kind

	// KindArea
	Lat, Lon, RadiusKM float64
	// KindBox
	Lat1, Lon1, Lat2, Lon2 float64
	// KindPrefix, KindBudlist, KindType, KindObject
	Arg string
}

// Parse parses a single filter term.
func Parse(term string) (Filter, error) {
	term = strings.TrimSpace(term)
	if term == "all" || term == "a/*" {
		return Filter{Kind: KindAll}, nil
	}
	if len(term) < 2 || term[1] != '/' {
		return Filter{}, fmt.Errorf("unknown filter %q", term)
	}
	arg := term[2:]
	switch term[0] {
	case 'r':
		parts := strings.Split(arg, "/")
		if len(parts) != 3 {
			return Filter{}, fmt.Errorf("radius filter needs r/lat/lon/km: %q", term)
		}
		lat, err1 := strconv.ParseFloat(parts[0], 64)
		lon, err2 := strconv.ParseFloat(parts[1], 64)
		km, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return Filter{}, fmt.Errorf("bad number in %q", term)
		}
		return Filter{Kind: KindArea, Lat: lat, Lon: lon, RadiusKM: km}, nil
	case 'a':
		parts := strings.Split(arg, "/")
		if len(parts) != 4 {
			return Filter{}, fmt.Errorf("area filter needs a/lat1/lon1/lat2/lon2: %q", term)
		}
		var vals [4]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return Filter{}, fmt.Errorf("bad number in %q", term)
			}
			vals[i] = v
		}
		return Filter{Kind: KindBox, Lat1: vals[0], Lon1: vals[1], Lat2: vals[2], Lon2: vals[3]}, nil
	case 'p':
		if arg == "" {
			return Filter{}, fmt.Errorf("empty prefix filter")
		}
		return Filter{Kind: KindPrefix, Arg: strings.ToUpper(arg)}, nil
	case 'b':
		if arg == "" {
			return Filter{}, fmt.Errorf("empty budlist filter")
		}
		return Filter{Kind: KindBudlist, Arg: strings.ToUpper(arg)}, nil
	case 't':
		if arg == "" {
			return Filter{}, fmt.Errorf("empty type filter")
		}
		return Filter{Kind: KindType, Arg: arg}, nil
	case 'o':
		if arg == "" {
			return Filter{}, fmt.Errorf("empty object filter")
		}
		return Filter{Kind: KindObject, Arg: arg}, nil
	}
	return Filter{}, fmt.Errorf("unknown filter %q", term)
}

func (f Filter) Matches(p *aprs.Packet) bool {
	switch f.Kind {
	case KindAll:
		return true
	case KindArea:
		lat, lon, ok := aprs.ExtractPosition(p.Payload)
		if !ok {
			return false
		}
		return HaversineKM(f.Lat, f.Lon, lat, lon) <= f.RadiusKM
	case KindBox:
		lat, lon, ok := aprs.ExtractPosition(p.Payload)
		if !ok {
			return false
		}
		minLat, maxLat := math.Min(f.Lat1, f.Lat2), math.Max(f.Lat1, f.Lat2)
		minLon, maxLon := math.Min(f.Lon1, f.Lon2), math.Max(f.Lon1, f.Lon2)
		return lat >= minLat && lat <= maxLat && lon >= minLon && lon <= maxLon
	case KindPrefix:
		return strings.HasPrefix(p.Source.String(), f.Arg)
	case KindBudlist:
		return p.Source.String() == f.Arg || p.Source.Base == f.Arg
	case KindType:
		return p.Type() != 0 && strings.IndexByte(f.Arg, p.Type()) >= 0
	case KindObject:
		return strings.Contains(p.Payload, f.Arg)
	}
	return false
}

func (f Filter) String() string {
	switch f.Kind {
	case KindAll:
		return "all"
	case KindArea:
		return fmt.Sprintf("r/%g/%g/%g", f.Lat, f.Lon, f.RadiusKM)
	case KindBox:
		return fmt.Sprintf("a/%g/%g/%g/%g", f.Lat1, f.Lon1, f.Lat2, f.Lon2)
	case KindPrefix:
		return "p/" + f.Arg
	case KindBudlist:
		return "b/" + f.Arg
	case KindType:
		return "t/" + f.Arg
	case KindObject:
		return "o/" + f.Arg
	}
	return ""
}

// Set is a disjunction of filters. An empty set matches everything: a
// client with no filter subscribes to the full feed.
type Set []Filter

// ParseSet parses a whitespace-separated filter expression. Invalid terms
// are returned as errors and skipped; valid terms still take effect.
func ParseSet(expr string) (Set, []error) {
	var set Set
	var errs []error
	for _, term := range strings.Fields(expr) {
		f, err := Parse(term)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set = append(set, f)
	}
	return set, errs
}

func (s Set) Matches(p *aprs.Packet) bool {
	if len(s) == 0 {
		return true
	}
	for _, f := range s {
		if f.Matches(p) {
			return true
		}
	}
	return false
}

func (s Set) String() string {
	terms := make([]string, len(s))
	for i, f := range s {
		terms[i] = f.String()
	}
	return strings.Join(terms, " ")
}

// HaversineKM returns the great-circle distance between two coordinates.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const r = 6371.0
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180
	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return r * c
}
