// Package records defines the stored shape of archive documents. The same structs are decoded
// from Firestore snapshots and from YAML fixtures, then validated into domain values.
package records

import (
	"errors"
	"fmt"
	"strings"

	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/platform/textutil"
)

var (
	errMissingID   = errors.New("id is required")
	errMissingName = errors.New("a name in either language is required")
)

// Photo is a stored image reference.
type Photo struct {
	URL       string `firestore:"url" yaml:"url"`
	CaptionEn string `firestore:"captionEn" yaml:"captionEn"`
	CaptionAr string `firestore:"captionAr" yaml:"captionAr"`
}

// Coordinates is a stored latitude/longitude pair.
type Coordinates struct {
	Lat float64 `firestore:"lat" yaml:"lat"`
	Lng float64 `firestore:"lng" yaml:"lng"`
}

// Location is the stored shape of a locations document.
type Location struct {
	ID            string      `firestore:"-" yaml:"id"`
	NameEn        string      `firestore:"nameEn" yaml:"nameEn"`
	NameAr        string      `firestore:"nameAr" yaml:"nameAr"`
	DescriptionEn string      `firestore:"descriptionEn" yaml:"descriptionEn"`
	DescriptionAr string      `firestore:"descriptionAr" yaml:"descriptionAr"`
	Coordinates   Coordinates `firestore:"coordinates" yaml:"coordinates"`
	LegendID      string      `firestore:"legendId" yaml:"legendId"`
	MainImage     string      `firestore:"mainImage" yaml:"mainImage"`
	PanoramaImage string      `firestore:"panoramaImage" yaml:"panoramaImage"`
	Photos        []Photo     `firestore:"photos" yaml:"photos"`
	CreatedAt     any         `firestore:"createdAt" yaml:"createdAt"`
	UpdatedAt     any         `firestore:"updatedAt" yaml:"updatedAt"`
}

// ToDomain validates the record.
func (r Location) ToDomain(id string) (domain.Location, error) {
	id, err := requireIdentity(id, r.ID, r.NameEn, r.NameAr)
	if err != nil {
		return domain.Location{}, err
	}
	if r.Coordinates.Lat < -90 || r.Coordinates.Lat > 90 || r.Coordinates.Lng < -180 || r.Coordinates.Lng > 180 {
		return domain.Location{}, fmt.Errorf("coordinates out of range: %v,%v", r.Coordinates.Lat, r.Coordinates.Lng)
	}
	return domain.Location{
		ID:            id,
		NameEn:        strings.TrimSpace(r.NameEn),
		NameAr:        strings.TrimSpace(r.NameAr),
		DescriptionEn: strings.TrimSpace(r.DescriptionEn),
		DescriptionAr: strings.TrimSpace(r.DescriptionAr),
		Coordinates:   domain.Coordinates{Lat: r.Coordinates.Lat, Lng: r.Coordinates.Lng},
		LegendID:      strings.TrimSpace(r.LegendID),
		MainImage:     strings.TrimSpace(r.MainImage),
		PanoramaImage: strings.TrimSpace(r.PanoramaImage),
		Photos:        photos(r.Photos),
		CreatedAt:     timeOrZero(r.CreatedAt),
		UpdatedAt:     timeOrZero(r.UpdatedAt),
	}, nil
}

// Legend is the stored shape of a legends document.
type Legend struct {
	ID            string `firestore:"-" yaml:"id"`
	NameEn        string `firestore:"nameEn" yaml:"nameEn"`
	NameAr        string `firestore:"nameAr" yaml:"nameAr"`
	DescriptionEn string `firestore:"descriptionEn" yaml:"descriptionEn"`
	DescriptionAr string `firestore:"descriptionAr" yaml:"descriptionAr"`
	Color         string `firestore:"color" yaml:"color"`
	Icon          string `firestore:"icon" yaml:"icon"`
}

// ToDomain validates the record.
func (r Legend) ToDomain(id string) (domain.Legend, error) {
	id, err := requireIdentity(id, r.ID, r.NameEn, r.NameAr)
	if err != nil {
		return domain.Legend{}, err
	}
	return domain.Legend{
		ID:            id,
		NameEn:        strings.TrimSpace(r.NameEn),
		NameAr:        strings.TrimSpace(r.NameAr),
		DescriptionEn: strings.TrimSpace(r.DescriptionEn),
		DescriptionAr: strings.TrimSpace(r.DescriptionAr),
		Color:         strings.TrimSpace(r.Color),
		Icon:          strings.TrimSpace(r.Icon),
	}, nil
}

// Martyr is the stored shape of a martyrs document.
type Martyr struct {
	ID             string  `firestore:"-" yaml:"id"`
	NameEn         string  `firestore:"nameEn" yaml:"nameEn"`
	NameAr         string  `firestore:"nameAr" yaml:"nameAr"`
	JihadistNameEn string  `firestore:"jihadistNameEn" yaml:"jihadistNameEn"`
	JihadistNameAr string  `firestore:"jihadistNameAr" yaml:"jihadistNameAr"`
	WarID          string  `firestore:"warId" yaml:"warId"`
	BirthDate      any     `firestore:"birthDate" yaml:"birthDate"`
	MartyrdomDate  any     `firestore:"martyrdomDate" yaml:"martyrdomDate"`
	PlaceOfBirthEn string  `firestore:"placeOfBirthEn" yaml:"placeOfBirthEn"`
	PlaceOfBirthAr string  `firestore:"placeOfBirthAr" yaml:"placeOfBirthAr"`
	StoryEn        string  `firestore:"storyEn" yaml:"storyEn"`
	StoryAr        string  `firestore:"storyAr" yaml:"storyAr"`
	MainImage      string  `firestore:"mainImage" yaml:"mainImage"`
	Photos         []Photo `firestore:"photos" yaml:"photos"`
	CreatedAt      any     `firestore:"createdAt" yaml:"createdAt"`
	UpdatedAt      any     `firestore:"updatedAt" yaml:"updatedAt"`
}

// ToDomain validates the record. Malformed dates are dropped rather than rejected.
func (r Martyr) ToDomain(id string) (domain.Martyr, error) {
	id, err := requireIdentity(id, r.ID, r.NameEn, r.NameAr)
	if err != nil {
		return domain.Martyr{}, err
	}
	return domain.Martyr{
		ID:             id,
		NameEn:         strings.TrimSpace(r.NameEn),
		NameAr:         strings.TrimSpace(r.NameAr),
		JihadistNameEn: strings.TrimSpace(r.JihadistNameEn),
		JihadistNameAr: strings.TrimSpace(r.JihadistNameAr),
		WarID:          strings.TrimSpace(r.WarID),
		BirthDate:      optionalTime(r.BirthDate),
		MartyrdomDate:  optionalTime(r.MartyrdomDate),
		PlaceOfBirthEn: strings.TrimSpace(r.PlaceOfBirthEn),
		PlaceOfBirthAr: strings.TrimSpace(r.PlaceOfBirthAr),
		StoryEn:        r.StoryEn,
		StoryAr:        r.StoryAr,
		MainImage:      strings.TrimSpace(r.MainImage),
		Photos:         photos(r.Photos),
		CreatedAt:      timeOrZero(r.CreatedAt),
		UpdatedAt:      timeOrZero(r.UpdatedAt),
	}, nil
}

// Activity is the stored shape of an activities document.
type Activity struct {
	ID            string  `firestore:"-" yaml:"id"`
	NameEn        string  `firestore:"nameEn" yaml:"nameEn"`
	NameAr        string  `firestore:"nameAr" yaml:"nameAr"`
	DescriptionEn string  `firestore:"descriptionEn" yaml:"descriptionEn"`
	DescriptionAr string  `firestore:"descriptionAr" yaml:"descriptionAr"`
	Date          any     `firestore:"date" yaml:"date"`
	IsPrivate     bool    `firestore:"isPrivate" yaml:"isPrivate"`
	LocationID    string  `firestore:"locationId" yaml:"locationId"`
	MainImage     string  `firestore:"mainImage" yaml:"mainImage"`
	Photos        []Photo `firestore:"photos" yaml:"photos"`
	CreatedAt     any     `firestore:"createdAt" yaml:"createdAt"`
	UpdatedAt     any     `firestore:"updatedAt" yaml:"updatedAt"`
}

// ToDomain validates the record. A missing or malformed date yields the zero time, which keeps
// the activity listed but out of date-filtered views.
func (r Activity) ToDomain(id string) (domain.Activity, error) {
	id, err := requireIdentity(id, r.ID, r.NameEn, r.NameAr)
	if err != nil {
		return domain.Activity{}, err
	}
	return domain.Activity{
		ID:            id,
		NameEn:        strings.TrimSpace(r.NameEn),
		NameAr:        strings.TrimSpace(r.NameAr),
		DescriptionEn: strings.TrimSpace(r.DescriptionEn),
		DescriptionAr: strings.TrimSpace(r.DescriptionAr),
		Date:          timeOrZero(r.Date),
		IsPrivate:     r.IsPrivate,
		LocationID:    strings.TrimSpace(r.LocationID),
		MainImage:     strings.TrimSpace(r.MainImage),
		Photos:        photos(r.Photos),
		CreatedAt:     timeOrZero(r.CreatedAt),
		UpdatedAt:     timeOrZero(r.UpdatedAt),
	}, nil
}

// SiteSettings is the stored shape of the singleton settings document.
type SiteSettings struct {
	SiteTitleEn   string            `firestore:"siteTitleEn" yaml:"siteTitleEn"`
	SiteTitleAr   string            `firestore:"siteTitleAr" yaml:"siteTitleAr"`
	TaglineEn     string            `firestore:"taglineEn" yaml:"taglineEn"`
	TaglineAr     string            `firestore:"taglineAr" yaml:"taglineAr"`
	LogoURL       string            `firestore:"logoUrl" yaml:"logoUrl"`
	HeroImage     string            `firestore:"heroImage" yaml:"heroImage"`
	ContactEmail  string            `firestore:"contactEmail" yaml:"contactEmail"`
	ContactPhone  string            `firestore:"contactPhone" yaml:"contactPhone"`
	AddressEn     string            `firestore:"addressEn" yaml:"addressEn"`
	AddressAr     string            `firestore:"addressAr" yaml:"addressAr"`
	SocialLinks   map[string]string `firestore:"socialLinks" yaml:"socialLinks"`
	DefaultLocale string            `firestore:"defaultLocale" yaml:"defaultLocale"`
	UpdatedAt     any               `firestore:"updatedAt" yaml:"updatedAt"`
}

// ToDomain normalises the settings. Every field is optional.
func (r SiteSettings) ToDomain(string) (*domain.SiteSettings, error) {
	locale := strings.ToLower(strings.TrimSpace(r.DefaultLocale))
	if locale != "" && locale != "ar" && locale != "en" {
		return nil, fmt.Errorf("unsupported default locale %q", r.DefaultLocale)
	}
	return &domain.SiteSettings{
		SiteTitleEn:   strings.TrimSpace(r.SiteTitleEn),
		SiteTitleAr:   strings.TrimSpace(r.SiteTitleAr),
		TaglineEn:     strings.TrimSpace(r.TaglineEn),
		TaglineAr:     strings.TrimSpace(r.TaglineAr),
		LogoURL:       strings.TrimSpace(r.LogoURL),
		HeroImage:     strings.TrimSpace(r.HeroImage),
		ContactEmail:  strings.TrimSpace(r.ContactEmail),
		ContactPhone:  strings.TrimSpace(r.ContactPhone),
		AddressEn:     strings.TrimSpace(r.AddressEn),
		AddressAr:     strings.TrimSpace(r.AddressAr),
		SocialLinks:   textutil.NormalizeLinks(r.SocialLinks),
		DefaultLocale: locale,
		UpdatedAt:     timeOrZero(r.UpdatedAt),
	}, nil
}

// War is the stored shape of a wars document.
type War struct {
	ID            string `firestore:"-" yaml:"id"`
	NameEn        string `firestore:"nameEn" yaml:"nameEn"`
	NameAr        string `firestore:"nameAr" yaml:"nameAr"`
	DescriptionEn string `firestore:"descriptionEn" yaml:"descriptionEn"`
	DescriptionAr string `firestore:"descriptionAr" yaml:"descriptionAr"`
	StartDate     any    `firestore:"startDate" yaml:"startDate"`
	EndDate       any    `firestore:"endDate" yaml:"endDate"`
}

// ToDomain validates the record.
func (r War) ToDomain(id string) (domain.War, error) {
	id, err := requireIdentity(id, r.ID, r.NameEn, r.NameAr)
	if err != nil {
		return domain.War{}, err
	}
	return domain.War{
		ID:            id,
		NameEn:        strings.TrimSpace(r.NameEn),
		NameAr:        strings.TrimSpace(r.NameAr),
		DescriptionEn: strings.TrimSpace(r.DescriptionEn),
		DescriptionAr: strings.TrimSpace(r.DescriptionAr),
		StartDate:     optionalTime(r.StartDate),
		EndDate:       optionalTime(r.EndDate),
	}, nil
}

// requireIdentity picks the document id (falling back to the embedded one used by fixtures) and
// checks that at least one name is present.
func requireIdentity(docID, embedded, nameEn, nameAr string) (string, error) {
	id := strings.TrimSpace(docID)
	if id == "" {
		id = strings.TrimSpace(embedded)
	}
	if id == "" {
		return "", errMissingID
	}
	if strings.TrimSpace(nameEn) == "" && strings.TrimSpace(nameAr) == "" {
		return "", errMissingName
	}
	return id, nil
}

func photos(in []Photo) []domain.Photo {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Photo, 0, len(in))
	for _, p := range in {
		url := strings.TrimSpace(p.URL)
		if url == "" {
			continue
		}
		out = append(out, domain.Photo{
			URL:       url,
			CaptionEn: strings.TrimSpace(p.CaptionEn),
			CaptionAr: strings.TrimSpace(p.CaptionAr),
		})
	}
	return out
}
