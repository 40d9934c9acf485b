package core

import (
	"fmt"
	"sort"
)

// Region is a Chilean administrative region.
type Region struct {
	Code int64  `json:"code"`
	Name string `json:"name"`
}

// Commune belongs to exactly one region.
type Commune struct {
	Code       int64  `json:"code"`
	RegionCode int64  `json:"region_code"`
	Name       string `json:"name"`
}

const unknownLabel = "N/A"

var (
	regions = map[int64]Region{
		1: {Code: 1, Name: "Región de Valparaíso"},
		2: {Code: 2, Name: "Región Metropolitana"},
		3: {Code: 3, Name: "Región de O'Higgins"},
	}
	communes = map[int64]Commune{
		101: {Code: 101, RegionCode: 1, Name: "Quillota"},
		102: {Code: 102, RegionCode: 1, Name: "La Cruz"},
		201: {Code: 201, RegionCode: 2, Name: "Maipú"},
		301: {Code: 301, RegionCode: 3, Name: "Rancagua"},
		302: {Code: 302, RegionCode: 3, Name: "Rengo"},
	}
)

// Regions returns the known regions ordered by code.
func Regions() []Region {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Communes returns the communes of a region ordered by code. A zero region
// lists every commune.
func Communes(region int64) []Commune {
	out := make([]Commune, 0, len(communes))
	for _, c := range communes {
		if region != 0 && c.RegionCode != region {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LookupRegion returns the region with the given code.
func LookupRegion(code int64) (Region, bool) {
	r, ok := regions[code]
	return r, ok
}

// LookupCommune returns the commune with the given code.
func LookupCommune(code int64) (Commune, bool) {
	c, ok := communes[code]
	return c, ok
}

// CommuneBelongsToRegion reports whether the commune lies in the region.
func CommuneBelongsToRegion(commune, region int64) bool {
	c, ok := communes[commune]
	return ok && c.RegionCode == region
}

// RegionLabel renders "code - name" as shown in listings and reports.
func RegionLabel(code int64) string {
	name := unknownLabel
	if r, ok := regions[code]; ok {
		name = r.Name
	}
	return fmt.Sprintf("%d - %s", code, name)
}

// CommuneLabel renders "code - name" as shown in listings and reports.
func CommuneLabel(code int64) string {
	name := unknownLabel
	if c, ok := communes[code]; ok {
		name = c.Name
	}
	return fmt.Sprintf("%d - %s", code, name)
}
