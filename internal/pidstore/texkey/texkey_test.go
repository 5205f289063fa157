package texkey

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibflow/internal/records/models"
)

func record(mutate func(*models.Record)) *models.Record {
	r := &models.Record{
		Schema:       "http://localhost:8080/schemas/records/hep.json",
		DocumentType: []string{"article"},
		Titles:       []models.Title{{Title: "merged"}},
		Created:      "2001-11-01",
	}
	if mutate != nil {
		mutate(r)
	}
	return r
}

func manyAuthors() []models.Author {
	return []models.Author{
		{FullName: "Jessica, Jones"},
		{FullName: "Francis, Castle"},
		{FullName: "Luke, Cage"},
		{FullName: "Danny, Rand"},
		{FullName: "Matt, Murdock"},
		{FullName: "Bruce, Banner"},
		{FullName: "Stephen, Strange"},
		{FullName: "Scott, Lang"},
		{FullName: "Wade, Wilson"},
		{FullName: "Kyle, Richmond"},
		{FullName: "Felicia, Hardy"},
	}
}

func TestGenerateFirstAuthorFamilyName(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = []models.Author{
			{FullName: "Jessica, Jones"},
			{FullName: "Francis, Castle"},
		}
	})
	assert.Equal(t, "Jones:2001", Generate(r, false))
}

func TestGenerateCollaborationOutranksManyAuthors(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = manyAuthors()
		r.Collaborations = []models.Collaboration{{Value: "Defenders"}}
	})
	assert.Equal(t, "Defenders:2001", Generate(r, false))
}

func TestGenerateCorporateAuthor(t *testing.T) {
	r := record(func(r *models.Record) {
		r.CorporateAuthor = []string{"Stark Industries"}
	})
	assert.Equal(t, "StarkIndustries:2001", Generate(r, false))
}

func TestGenerateProceedingsLiteral(t *testing.T) {
	r := record(func(r *models.Record) {
		r.DocumentType = []string{"proceedings"}
	})
	assert.Equal(t, "proceedings:2001", Generate(r, false))
}

func TestGenerateTenOrMoreAuthorsFallsBackToFirst(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = manyAuthors()
	})
	assert.Equal(t, "Jones:2001", Generate(r, false))
}

func TestGenerateEmptyNamePart(t *testing.T) {
	r := record(nil)
	assert.Equal(t, ":2001", Generate(r, false))
}

func TestGenerateTransliteratesAccents(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = []models.Author{{FullName: "José, Müller"}}
	})
	assert.Equal(t, "Muller:2001", Generate(r, false))
}

func TestGenerateUsesEarliestDate(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = []models.Author{{FullName: "Jessica, Jones"}}
		r.PreprintDate = "2003-06-01"
		r.Imprints = []models.Imprint{{Date: "1999-12"}}
		r.PublicationInfo = []models.PublicationInfo{{Year: 2005}}
	})
	assert.Equal(t, "Jones:1999", Generate(r, false))
}

func TestGenerateFallsBackToCurrentYear(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = []models.Author{{FullName: "Jessica, Jones"}}
		r.Created = ""
	})
	want := "Jones:" + strconv.Itoa(time.Now().Year())
	assert.Equal(t, want, Generate(r, false))
}

func TestGenerateDeterministicWithoutSuffix(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = []models.Author{{FullName: "Jessica, Jones"}}
	})
	assert.Equal(t, Generate(r, false), Generate(r, false))
}

func TestGenerateSuffixOnlyVariesTrailingLetters(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = []models.Author{{FullName: "Jessica, Jones"}}
	})
	first := Generate(r, true)
	second := Generate(r, true)

	require.Len(t, first, len("Jones:2001")+3)
	assert.True(t, strings.HasPrefix(first, "Jones:2001"))
	assert.True(t, strings.HasPrefix(second, "Jones:2001"))
	for _, c := range first[len("Jones:2001"):] {
		assert.True(t, c >= 'a' && c <= 'z', "suffix must be lowercase ascii, got %q", c)
	}
}

func TestIsValid(t *testing.T) {
	r := record(func(r *models.Record) {
		r.Authors = []models.Author{{FullName: "Jessica, Jones"}}
	})

	t.Run("empty existing list forces a mint", func(t *testing.T) {
		assert.False(t, IsValid(r, nil))
	})

	t.Run("same identity with different suffix stays valid", func(t *testing.T) {
		assert.True(t, IsValid(r, []string{"Jones:2001xyz"}))
	})

	t.Run("changed first author invalidates", func(t *testing.T) {
		changed := record(func(r *models.Record) {
			r.Authors = []models.Author{{FullName: "Danny, Rand"}}
		})
		assert.False(t, IsValid(changed, []string{"Jones:2001xyz"}))
	})

	t.Run("only the most recent key is consulted", func(t *testing.T) {
		assert.False(t, IsValid(r, []string{"Rand:2001abc", "Jones:2001xyz"}))
	})
}
