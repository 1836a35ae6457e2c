package domain

import (
	"sort"
	"time"

	"github.com/memorial-heritage/api/internal/slug"
)

// Entity kinds used for slug fallbacks and error messages.
const (
	KindLocation = "location"
	KindLegend   = "legend"
	KindMartyr   = "martyr"
	KindActivity = "activity"
)

// Coordinates pins a location on the map.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Photo is an image reference stored alongside an entity. URL is an opaque storage reference.
type Photo struct {
	URL       string
	CaptionEn string
	CaptionAr string
}

// Location is a memorial site shown on the map.
type Location struct {
	ID            string
	NameEn        string
	NameAr        string
	DescriptionEn string
	DescriptionAr string
	Coordinates   Coordinates
	LegendID      string
	MainImage     string
	PanoramaImage string
	Photos        []Photo
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SlugFields implements slug.Sluggable.
func (l Location) SlugFields() slug.Fields {
	return slug.Fields{
		Kind:        KindLocation,
		ID:          l.ID,
		NameEn:      l.NameEn,
		NameAr:      l.NameAr,
		SecondaryEn: l.DescriptionEn,
		SecondaryAr: l.DescriptionAr,
	}
}

// Legend categorises locations on the map.
type Legend struct {
	ID            string
	NameEn        string
	NameAr        string
	DescriptionEn string
	DescriptionAr string
	Color         string
	Icon          string
}

// SlugFields implements slug.Sluggable. Legends carry no secondary part.
func (l Legend) SlugFields() slug.Fields {
	return slug.Fields{
		Kind:   KindLegend,
		ID:     l.ID,
		NameEn: l.NameEn,
		NameAr: l.NameAr,
	}
}

// Martyr is a biography entry.
type Martyr struct {
	ID             string
	NameEn         string
	NameAr         string
	JihadistNameEn string
	JihadistNameAr string
	WarID          string
	BirthDate      *time.Time
	MartyrdomDate  *time.Time
	PlaceOfBirthEn string
	PlaceOfBirthAr string
	StoryEn        string
	StoryAr        string
	MainImage      string
	Photos         []Photo
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SlugFields implements slug.Sluggable. The jihadist name disambiguates martyrs sharing a name.
func (m Martyr) SlugFields() slug.Fields {
	return slug.Fields{
		Kind:        KindMartyr,
		ID:          m.ID,
		NameEn:      m.NameEn,
		NameAr:      m.NameAr,
		SecondaryEn: m.JihadistNameEn,
		SecondaryAr: m.JihadistNameAr,
	}
}

// Activity is a dated event, optionally tied to a location. Date is zero when the stored value
// is missing or unparseable.
type Activity struct {
	ID            string
	NameEn        string
	NameAr        string
	DescriptionEn string
	DescriptionAr string
	Date          time.Time
	IsPrivate     bool
	LocationID    string
	MainImage     string
	Photos        []Photo
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SlugFields implements slug.Sluggable.
func (a Activity) SlugFields() slug.Fields {
	return slug.Fields{
		Kind:        KindActivity,
		ID:          a.ID,
		NameEn:      a.NameEn,
		NameAr:      a.NameAr,
		SecondaryEn: a.DescriptionEn,
		SecondaryAr: a.DescriptionAr,
	}
}

// SortActivitiesNewestFirst orders activities by date, newest first. Undated activities go last
// and ties keep their id order.
func SortActivitiesNewestFirst(items []Activity) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID < b.ID
	})
}

// SiteSettings is the singleton site-wide configuration document.
type SiteSettings struct {
	SiteTitleEn   string
	SiteTitleAr   string
	TaglineEn     string
	TaglineAr     string
	LogoURL       string
	HeroImage     string
	ContactEmail  string
	ContactPhone  string
	AddressEn     string
	AddressAr     string
	SocialLinks   map[string]string
	DefaultLocale string
	UpdatedAt     time.Time
}

// War groups martyrs by conflict.
type War struct {
	ID            string
	NameEn        string
	NameAr        string
	DescriptionEn string
	DescriptionAr string
	StartDate     *time.Time
	EndDate       *time.Time
}

// NewsArticle is a published news post. Bodies are markdown.
type NewsArticle struct {
	ID          string
	TitleEn     string
	TitleAr     string
	SummaryEn   string
	SummaryAr   string
	BodyEn      string
	BodyAr      string
	CoverImage  string
	Photos      []Photo
	Published   bool
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// PageSectionKind enumerates dynamic page building blocks.
type PageSectionKind string

const (
	PageSectionText    PageSectionKind = "text"
	PageSectionImage   PageSectionKind = "image"
	PageSectionGallery PageSectionKind = "gallery"
)

// PageSection is one ordered block of a dynamic page.
type PageSection struct {
	Kind    PageSectionKind
	TitleEn string
	TitleAr string
	BodyEn  string
	BodyAr  string
	Images  []Photo
	Order   int
}

// DynamicPage is an admin-curated page addressed by a stored slug.
type DynamicPage struct {
	ID        string
	Slug      string
	TitleEn   string
	TitleAr   string
	Sections  []PageSection
	Published bool
	UpdatedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
