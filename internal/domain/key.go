package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ArchiveKey addresses one remote object and one local cache file.
type ArchiveKey struct {
	Year      int
	Month     int
	Parameter string
}

// ObjectKey is the object-storage path of the monthly file.
func (k ArchiveKey) ObjectKey() string {
	return fmt.Sprintf("cds/%d/%02d/data/%s.nc", k.Year, k.Month, k.Parameter)
}

// CacheFileName is the local name of the raw download.
func (k ArchiveKey) CacheFileName() string {
	return fmt.Sprintf("%d%02d_%s.nc", k.Year, k.Month, k.Parameter)
}

// TempFileName is the relabelled but unsorted intermediate.
func (k ArchiveKey) TempFileName() string {
	return fmt.Sprintf("tmp_%s_%d-%02d.nc", k.Parameter, k.Year, k.Month)
}

// ArtifactFileName is the final cropped and normalized field.
func (k ArchiveKey) ArtifactFileName() string {
	return fmt.Sprintf("%s_%d-%02d.nc", k.Parameter, k.Year, k.Month)
}

func (k ArchiveKey) String() string {
	return fmt.Sprintf("%s@%d-%02d", k.Parameter, k.Year, k.Month)
}

// Validate rejects keys that would produce malformed names.
func (k ArchiveKey) Validate() error {
	if k.Month < 1 || k.Month > 12 {
		return fmt.Errorf("month %d out of range 1..12", k.Month)
	}
	if k.Year < 1 {
		return fmt.Errorf("year %d out of range", k.Year)
	}
	if k.Parameter == "" {
		return errors.New("parameter is required")
	}
	if strings.ContainsAny(k.Parameter, `/\`) {
		return fmt.Errorf("parameter %q contains a path separator", k.Parameter)
	}
	return nil
}

// MonthlyKeys lists every (year, month) unit for a parameter, year-major.
func MonthlyKeys(parameter string, minYear, maxYear int) []ArchiveKey {
	if maxYear < minYear {
		return nil
	}
	keys := make([]ArchiveKey, 0, (maxYear-minYear+1)*12)
	for y := minYear; y <= maxYear; y++ {
		for m := 1; m <= 12; m++ {
			keys = append(keys, ArchiveKey{Year: y, Month: m, Parameter: parameter})
		}
	}
	return keys
}
