package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/platform/locale"
	"github.com/memorial-heritage/api/internal/platform/requestctx"
	"github.com/memorial-heritage/api/internal/services"
	"github.com/memorial-heritage/api/internal/slug"
)

type photoPayload struct {
	URL       string `json:"url"`
	Caption   string `json:"caption,omitempty"`
	CaptionEn string `json:"captionEn,omitempty"`
	CaptionAr string `json:"captionAr,omitempty"`
}

type coordinatesPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type settingsPayload struct {
	SiteTitle     string            `json:"siteTitle"`
	SiteTitleEn   string            `json:"siteTitleEn"`
	SiteTitleAr   string            `json:"siteTitleAr"`
	Tagline       string            `json:"tagline,omitempty"`
	TaglineEn     string            `json:"taglineEn,omitempty"`
	TaglineAr     string            `json:"taglineAr,omitempty"`
	LogoURL       string            `json:"logoUrl,omitempty"`
	HeroImage     string            `json:"heroImage,omitempty"`
	ContactEmail  string            `json:"contactEmail,omitempty"`
	ContactPhone  string            `json:"contactPhone,omitempty"`
	Address       string            `json:"address,omitempty"`
	AddressEn     string            `json:"addressEn,omitempty"`
	AddressAr     string            `json:"addressAr,omitempty"`
	SocialLinks   map[string]string `json:"socialLinks,omitempty"`
	DefaultLocale string            `json:"defaultLocale,omitempty"`
	UpdatedAt     string            `json:"updatedAt,omitempty"`
}

type legendPayload struct {
	ID            string `json:"id"`
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	NameEn        string `json:"nameEn"`
	NameAr        string `json:"nameAr"`
	Description   string `json:"description,omitempty"`
	DescriptionEn string `json:"descriptionEn,omitempty"`
	DescriptionAr string `json:"descriptionAr,omitempty"`
	Color         string `json:"color,omitempty"`
	Icon          string `json:"icon,omitempty"`
}

type locationPayload struct {
	ID            string             `json:"id"`
	Slug          string             `json:"slug"`
	Name          string             `json:"name"`
	NameEn        string             `json:"nameEn"`
	NameAr        string             `json:"nameAr"`
	Description   string             `json:"description,omitempty"`
	DescriptionEn string             `json:"descriptionEn,omitempty"`
	DescriptionAr string             `json:"descriptionAr,omitempty"`
	Coordinates   coordinatesPayload `json:"coordinates"`
	LegendID      string             `json:"legendId,omitempty"`
	Legend        *legendPayload     `json:"legend,omitempty"`
	MainImage     string             `json:"mainImage,omitempty"`
	PanoramaImage string             `json:"panoramaImage,omitempty"`
	Photos        []photoPayload     `json:"photos"`
	CreatedAt     string             `json:"createdAt,omitempty"`
	UpdatedAt     string             `json:"updatedAt,omitempty"`
}

type warPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	NameEn        string `json:"nameEn"`
	NameAr        string `json:"nameAr"`
	Description   string `json:"description,omitempty"`
	DescriptionEn string `json:"descriptionEn,omitempty"`
	DescriptionAr string `json:"descriptionAr,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
}

type martyrPayload struct {
	ID             string         `json:"id"`
	Slug           string         `json:"slug"`
	Name           string         `json:"name"`
	NameEn         string         `json:"nameEn"`
	NameAr         string         `json:"nameAr"`
	JihadistName   string         `json:"jihadistName,omitempty"`
	JihadistNameEn string         `json:"jihadistNameEn,omitempty"`
	JihadistNameAr string         `json:"jihadistNameAr,omitempty"`
	WarID          string         `json:"warId,omitempty"`
	War            *warPayload    `json:"war,omitempty"`
	BirthDate      string         `json:"birthDate,omitempty"`
	MartyrdomDate  string         `json:"martyrdomDate,omitempty"`
	PlaceOfBirth   string         `json:"placeOfBirth,omitempty"`
	PlaceOfBirthEn string         `json:"placeOfBirthEn,omitempty"`
	PlaceOfBirthAr string         `json:"placeOfBirthAr,omitempty"`
	Story          string         `json:"story,omitempty"`
	StoryEn        string         `json:"storyEn,omitempty"`
	StoryAr        string         `json:"storyAr,omitempty"`
	MainImage      string         `json:"mainImage,omitempty"`
	Photos         []photoPayload `json:"photos"`
	CreatedAt      string         `json:"createdAt,omitempty"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
}

type locationRefPayload struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type activityPayload struct {
	ID            string              `json:"id"`
	Slug          string              `json:"slug"`
	Name          string              `json:"name"`
	NameEn        string              `json:"nameEn"`
	NameAr        string              `json:"nameAr"`
	Description   string              `json:"description,omitempty"`
	DescriptionEn string              `json:"descriptionEn,omitempty"`
	DescriptionAr string              `json:"descriptionAr,omitempty"`
	Date          string              `json:"date,omitempty"`
	LocationID    string              `json:"locationId,omitempty"`
	Location      *locationRefPayload `json:"location,omitempty"`
	MainImage     string              `json:"mainImage,omitempty"`
	Photos        []photoPayload      `json:"photos"`
	CreatedAt     string              `json:"createdAt,omitempty"`
	UpdatedAt     string              `json:"updatedAt,omitempty"`
}

type newsSummaryPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	TitleEn     string `json:"titleEn"`
	TitleAr     string `json:"titleAr"`
	Summary     string `json:"summary,omitempty"`
	SummaryEn   string `json:"summaryEn,omitempty"`
	SummaryAr   string `json:"summaryAr,omitempty"`
	CoverImage  string `json:"coverImage,omitempty"`
	PublishedAt string `json:"publishedAt"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

type newsDetailPayload struct {
	newsSummaryPayload
	Body       string         `json:"body"`
	BodyHTMLEn string         `json:"bodyHtmlEn"`
	BodyHTMLAr string         `json:"bodyHtmlAr"`
	Photos     []photoPayload `json:"photos"`
}

type pageSectionPayload struct {
	Type       string         `json:"type"`
	Title      string         `json:"title,omitempty"`
	TitleEn    string         `json:"titleEn,omitempty"`
	TitleAr    string         `json:"titleAr,omitempty"`
	Body       string         `json:"body,omitempty"`
	BodyHTMLEn string         `json:"bodyHtmlEn,omitempty"`
	BodyHTMLAr string         `json:"bodyHtmlAr,omitempty"`
	Images     []photoPayload `json:"images,omitempty"`
}

type pagePayload struct {
	ID        string               `json:"id"`
	Slug      string               `json:"slug"`
	Title     string               `json:"title"`
	TitleEn   string               `json:"titleEn"`
	TitleAr   string               `json:"titleAr"`
	Sections  []pageSectionPayload `json:"sections"`
	UpdatedAt string               `json:"updatedAt,omitempty"`
}

// presenter turns domain values into localised payloads for one request.
type presenter struct {
	ctx    context.Context
	loc    string
	media  MediaURLResolver
	logger *zap.Logger
}

func newPresenter(ctx context.Context, media MediaURLResolver, fallbackLocale string) presenter {
	loc := requestctx.Locale(ctx)
	if loc == "" {
		loc = fallbackLocale
	}
	return presenter{
		ctx:    ctx,
		loc:    loc,
		media:  media,
		logger: requestctx.Logger(ctx),
	}
}

func (p presenter) pick(en, ar string) string {
	return locale.Pick(p.loc, en, ar)
}

// mediaURL resolves a stored reference. A reference that cannot be resolved is logged and
// dropped so one bad image never fails a whole listing.
func (p presenter) mediaURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || p.media == nil {
		return ref
	}
	url, err := p.media.ResolveURL(p.ctx, ref)
	if err != nil {
		p.logger.Warn("media reference unresolved", zap.String("ref", ref), zap.Error(err))
		return ""
	}
	return url
}

func (p presenter) photos(in []domain.Photo) []photoPayload {
	out := make([]photoPayload, 0, len(in))
	for _, photo := range in {
		url := p.mediaURL(photo.URL)
		if url == "" {
			continue
		}
		out = append(out, photoPayload{
			URL:       url,
			Caption:   p.pick(photo.CaptionEn, photo.CaptionAr),
			CaptionEn: photo.CaptionEn,
			CaptionAr: photo.CaptionAr,
		})
	}
	return out
}

func (p presenter) settings(s *domain.SiteSettings) settingsPayload {
	if s == nil {
		return settingsPayload{}
	}
	return settingsPayload{
		SiteTitle:     p.pick(s.SiteTitleEn, s.SiteTitleAr),
		SiteTitleEn:   s.SiteTitleEn,
		SiteTitleAr:   s.SiteTitleAr,
		Tagline:       p.pick(s.TaglineEn, s.TaglineAr),
		TaglineEn:     s.TaglineEn,
		TaglineAr:     s.TaglineAr,
		LogoURL:       p.mediaURL(s.LogoURL),
		HeroImage:     p.mediaURL(s.HeroImage),
		ContactEmail:  s.ContactEmail,
		ContactPhone:  s.ContactPhone,
		Address:       p.pick(s.AddressEn, s.AddressAr),
		AddressEn:     s.AddressEn,
		AddressAr:     s.AddressAr,
		SocialLinks:   s.SocialLinks,
		DefaultLocale: s.DefaultLocale,
		UpdatedAt:     formatTimestamp(s.UpdatedAt),
	}
}

func (p presenter) legend(l domain.Legend) legendPayload {
	return legendPayload{
		ID:            l.ID,
		Slug:          slug.Encode(l),
		Name:          p.pick(l.NameEn, l.NameAr),
		NameEn:        l.NameEn,
		NameAr:        l.NameAr,
		Description:   p.pick(l.DescriptionEn, l.DescriptionAr),
		DescriptionEn: l.DescriptionEn,
		DescriptionAr: l.DescriptionAr,
		Color:         l.Color,
		Icon:          l.Icon,
	}
}

func (p presenter) location(l domain.Location) locationPayload {
	return locationPayload{
		ID:            l.ID,
		Slug:          slug.Encode(l),
		Name:          p.pick(l.NameEn, l.NameAr),
		NameEn:        l.NameEn,
		NameAr:        l.NameAr,
		Description:   p.pick(l.DescriptionEn, l.DescriptionAr),
		DescriptionEn: l.DescriptionEn,
		DescriptionAr: l.DescriptionAr,
		Coordinates:   coordinatesPayload{Lat: l.Coordinates.Lat, Lng: l.Coordinates.Lng},
		LegendID:      l.LegendID,
		MainImage:     p.mediaURL(l.MainImage),
		PanoramaImage: p.mediaURL(l.PanoramaImage),
		Photos:        p.photos(l.Photos),
		CreatedAt:     formatTimestamp(l.CreatedAt),
		UpdatedAt:     formatTimestamp(l.UpdatedAt),
	}
}

func (p presenter) war(w domain.War) warPayload {
	return warPayload{
		ID:            w.ID,
		Name:          p.pick(w.NameEn, w.NameAr),
		NameEn:        w.NameEn,
		NameAr:        w.NameAr,
		Description:   p.pick(w.DescriptionEn, w.DescriptionAr),
		DescriptionEn: w.DescriptionEn,
		DescriptionAr: w.DescriptionAr,
		StartDate:     formatOptionalTimestamp(w.StartDate),
		EndDate:       formatOptionalTimestamp(w.EndDate),
	}
}

func (p presenter) martyr(m domain.Martyr) martyrPayload {
	return martyrPayload{
		ID:             m.ID,
		Slug:           slug.Encode(m),
		Name:           p.pick(m.NameEn, m.NameAr),
		NameEn:         m.NameEn,
		NameAr:         m.NameAr,
		JihadistName:   p.pick(m.JihadistNameEn, m.JihadistNameAr),
		JihadistNameEn: m.JihadistNameEn,
		JihadistNameAr: m.JihadistNameAr,
		WarID:          m.WarID,
		BirthDate:      formatOptionalTimestamp(m.BirthDate),
		MartyrdomDate:  formatOptionalTimestamp(m.MartyrdomDate),
		PlaceOfBirth:   p.pick(m.PlaceOfBirthEn, m.PlaceOfBirthAr),
		PlaceOfBirthEn: m.PlaceOfBirthEn,
		PlaceOfBirthAr: m.PlaceOfBirthAr,
		Story:          p.pick(m.StoryEn, m.StoryAr),
		StoryEn:        m.StoryEn,
		StoryAr:        m.StoryAr,
		MainImage:      p.mediaURL(m.MainImage),
		Photos:         p.photos(m.Photos),
		CreatedAt:      formatTimestamp(m.CreatedAt),
		UpdatedAt:      formatTimestamp(m.UpdatedAt),
	}
}

func (p presenter) activity(a domain.Activity) activityPayload {
	return activityPayload{
		ID:            a.ID,
		Slug:          slug.Encode(a),
		Name:          p.pick(a.NameEn, a.NameAr),
		NameEn:        a.NameEn,
		NameAr:        a.NameAr,
		Description:   p.pick(a.DescriptionEn, a.DescriptionAr),
		DescriptionEn: a.DescriptionEn,
		DescriptionAr: a.DescriptionAr,
		Date:          formatTimestamp(a.Date),
		LocationID:    a.LocationID,
		MainImage:     p.mediaURL(a.MainImage),
		Photos:        p.photos(a.Photos),
		CreatedAt:     formatTimestamp(a.CreatedAt),
		UpdatedAt:     formatTimestamp(a.UpdatedAt),
	}
}

func (p presenter) locationRef(l domain.Location) *locationRefPayload {
	return &locationRefPayload{
		ID:   l.ID,
		Slug: slug.Encode(l),
		Name: p.pick(l.NameEn, l.NameAr),
	}
}

func (p presenter) newsSummary(n domain.NewsArticle) newsSummaryPayload {
	return newsSummaryPayload{
		ID:          n.ID,
		Title:       p.pick(n.TitleEn, n.TitleAr),
		TitleEn:     n.TitleEn,
		TitleAr:     n.TitleAr,
		Summary:     p.pick(n.SummaryEn, n.SummaryAr),
		SummaryEn:   n.SummaryEn,
		SummaryAr:   n.SummaryAr,
		CoverImage:  p.mediaURL(n.CoverImage),
		PublishedAt: formatTimestamp(n.PublishedAt),
		UpdatedAt:   formatTimestamp(n.UpdatedAt),
	}
}

func (p presenter) newsDetail(n services.NewsArticle) newsDetailPayload {
	return newsDetailPayload{
		newsSummaryPayload: p.newsSummary(n.NewsArticle),
		Body:               p.pick(n.BodyHTMLEn, n.BodyHTMLAr),
		BodyHTMLEn:         n.BodyHTMLEn,
		BodyHTMLAr:         n.BodyHTMLAr,
		Photos:             p.photos(n.Photos),
	}
}

func (p presenter) page(pg services.Page) pagePayload {
	sections := make([]pageSectionPayload, 0, len(pg.Sections))
	for _, section := range pg.Sections {
		sections = append(sections, pageSectionPayload{
			Type:       string(section.Kind),
			Title:      p.pick(section.TitleEn, section.TitleAr),
			TitleEn:    section.TitleEn,
			TitleAr:    section.TitleAr,
			Body:       p.pick(section.BodyHTMLEn, section.BodyHTMLAr),
			BodyHTMLEn: section.BodyHTMLEn,
			BodyHTMLAr: section.BodyHTMLAr,
			Images:     p.photos(section.Images),
		})
	}
	return pagePayload{
		ID:        pg.ID,
		Slug:      pg.Slug,
		Title:     p.pick(pg.TitleEn, pg.TitleAr),
		TitleEn:   pg.TitleEn,
		TitleAr:   pg.TitleAr,
		Sections:  sections,
		UpdatedAt: formatTimestamp(pg.UpdatedAt),
	}
}
