package service

import (
	"fmt"

	"github.com/unityaid/mobile-sync/internal/model"
)

// Upload payload shapes. Uploads reference each other through client-side
// temporary ids until the server hands back real ids.

type siteUpload struct {
	TempID            string          `json:"temp_id"`
	Name              string          `json:"name"`
	NameAr            string          `json:"name_ar"`
	Description       string          `json:"description"`
	SiteType          string          `json:"site_type"`
	OperationalStatus string          `json:"operational_status"`
	Location          *model.Location `json:"location"`
	TotalPopulation   int             `json:"total_population"`
	TotalHouseholds   int             `json:"total_households"`
	ContactPerson     string          `json:"contact_person"`
	ContactPhone      string          `json:"contact_phone"`
}

type responseUpload struct {
	TempID       string          `json:"temp_id"`
	AssessmentID string          `json:"assessment"`
	SiteID       string          `json:"site"`
	Data         map[string]any  `json:"data"`
	GPSLocation  *model.Location `json:"gps_location"`
	Submitted    bool            `json:"is_submitted"`
}

type reportUpload struct {
	TempID      string `json:"temp_id"`
	SiteID      string `json:"site"`
	Title       string `json:"title"`
	TextContent string `json:"text_content"`
	ReportType  string `json:"report_type"`
	Priority    string `json:"priority"`
}

// validateLocation checks the GeoJSON-like point shape and coordinate ranges.
func validateLocation(loc *model.Location) error {
	if loc == nil {
		return nil
	}
	if loc.Type != "Point" {
		return fmt.Errorf("location must be a Point type")
	}
	if len(loc.Coordinates) != 2 {
		return fmt.Errorf("coordinates must contain [longitude, latitude]")
	}
	lon, lat := loc.Coordinates[0], loc.Coordinates[1]
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	return nil
}

func (u *siteUpload) validate() error {
	if u.Name == "" {
		return fmt.Errorf("name is required")
	}
	if u.SiteType == "" {
		return fmt.Errorf("site_type is required")
	}
	if err := validateLocation(u.Location); err != nil {
		return err
	}
	if u.TotalPopulation < 0 || u.TotalHouseholds < 0 {
		return fmt.Errorf("population counts must be non-negative")
	}
	return nil
}

func (u *responseUpload) validate() error {
	if u.AssessmentID == "" {
		return fmt.Errorf("assessment is required")
	}
	if u.SiteID == "" {
		return fmt.Errorf("site is required")
	}
	return validateLocation(u.GPSLocation)
}

func (u *reportUpload) validate() error {
	if u.Title == "" {
		return fmt.Errorf("title is required")
	}
	if u.SiteID == "" {
		return fmt.Errorf("site is required")
	}
	return nil
}
