package records

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/memorial-heritage/api/internal/domain"
	"github.com/memorial-heritage/api/internal/slug"
)

// NewsArticle is the stored shape of a news document.
type NewsArticle struct {
	ID          string  `firestore:"-" yaml:"id"`
	TitleEn     string  `firestore:"titleEn" yaml:"titleEn"`
	TitleAr     string  `firestore:"titleAr" yaml:"titleAr"`
	SummaryEn   string  `firestore:"summaryEn" yaml:"summaryEn"`
	SummaryAr   string  `firestore:"summaryAr" yaml:"summaryAr"`
	BodyEn      string  `firestore:"bodyEn" yaml:"bodyEn"`
	BodyAr      string  `firestore:"bodyAr" yaml:"bodyAr"`
	CoverImage  string  `firestore:"coverImage" yaml:"coverImage"`
	Photos      []Photo `firestore:"photos" yaml:"photos"`
	Published   bool    `firestore:"published" yaml:"published"`
	PublishedAt any     `firestore:"publishedAt" yaml:"publishedAt"`
	UpdatedAt   any     `firestore:"updatedAt" yaml:"updatedAt"`
}

// ToDomain validates the record. Published articles need a publication time to be ordered.
func (r NewsArticle) ToDomain(id string) (domain.NewsArticle, error) {
	id, err := requireIdentity(id, r.ID, r.TitleEn, r.TitleAr)
	if err != nil {
		return domain.NewsArticle{}, err
	}
	publishedAt, ok := parseTime(r.PublishedAt)
	if r.Published && !ok {
		return domain.NewsArticle{}, errors.New("published article requires publishedAt")
	}
	return domain.NewsArticle{
		ID:          id,
		TitleEn:     strings.TrimSpace(r.TitleEn),
		TitleAr:     strings.TrimSpace(r.TitleAr),
		SummaryEn:   strings.TrimSpace(r.SummaryEn),
		SummaryAr:   strings.TrimSpace(r.SummaryAr),
		BodyEn:      r.BodyEn,
		BodyAr:      r.BodyAr,
		CoverImage:  strings.TrimSpace(r.CoverImage),
		Photos:      photos(r.Photos),
		Published:   r.Published,
		PublishedAt: publishedAt,
		UpdatedAt:   timeOrZero(r.UpdatedAt),
	}, nil
}

// PageSection is one stored block of a dynamic page.
type PageSection struct {
	Type    string  `firestore:"type" yaml:"type"`
	TitleEn string  `firestore:"titleEn" yaml:"titleEn"`
	TitleAr string  `firestore:"titleAr" yaml:"titleAr"`
	BodyEn  string  `firestore:"bodyEn" yaml:"bodyEn"`
	BodyAr  string  `firestore:"bodyAr" yaml:"bodyAr"`
	Images  []Photo `firestore:"images" yaml:"images"`
	Order   int     `firestore:"order" yaml:"order"`
}

// DynamicPage is the stored shape of a pages document.
type DynamicPage struct {
	ID        string        `firestore:"-" yaml:"id"`
	Slug      string        `firestore:"slug" yaml:"slug"`
	TitleEn   string        `firestore:"titleEn" yaml:"titleEn"`
	TitleAr   string        `firestore:"titleAr" yaml:"titleAr"`
	Sections  []PageSection `firestore:"sections" yaml:"sections"`
	Published bool          `firestore:"published" yaml:"published"`
	UpdatedAt any           `firestore:"updatedAt" yaml:"updatedAt"`
}

// ToDomain validates the record. The stored slug is normalised with the same rules as derived
// slugs; sections are sorted by their order field.
func (r DynamicPage) ToDomain(id string) (domain.DynamicPage, error) {
	id, err := requireIdentity(id, r.ID, r.TitleEn, r.TitleAr)
	if err != nil {
		return domain.DynamicPage{}, err
	}
	pageSlug := slug.Normalize(r.Slug)
	if pageSlug == "" {
		return domain.DynamicPage{}, errors.New("slug is required")
	}

	sections := make([]domain.PageSection, 0, len(r.Sections))
	for i, s := range r.Sections {
		kind := domain.PageSectionKind(strings.ToLower(strings.TrimSpace(s.Type)))
		switch kind {
		case "":
			kind = domain.PageSectionText
		case domain.PageSectionText, domain.PageSectionImage, domain.PageSectionGallery:
		default:
			return domain.DynamicPage{}, fmt.Errorf("section %d: unknown type %q", i, s.Type)
		}
		sections = append(sections, domain.PageSection{
			Kind:    kind,
			TitleEn: strings.TrimSpace(s.TitleEn),
			TitleAr: strings.TrimSpace(s.TitleAr),
			BodyEn:  s.BodyEn,
			BodyAr:  s.BodyAr,
			Images:  photos(s.Images),
			Order:   s.Order,
		})
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Order < sections[j].Order
	})

	return domain.DynamicPage{
		ID:        id,
		Slug:      pageSlug,
		TitleEn:   strings.TrimSpace(r.TitleEn),
		TitleAr:   strings.TrimSpace(r.TitleAr),
		Sections:  sections,
		Published: r.Published,
		UpdatedAt: timeOrZero(r.UpdatedAt),
	}, nil
}
