package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/amparo-ai/amparo/pkg/core/types"
)

func sampleInput() Input {
	return Input{
		Identity: types.Identity{
			UserID:        "u_1",
			Name:          "Carmen",
			Age:           81,
			Gender:        types.GenderFemale,
			Language:      "es",
			CognitiveMode: "mild_support",
			Family: []types.FamilyMember{
				{Name: "Lucia", Relation: "daughter"},
				{Name: "Mateo", Relation: "grandson"},
			},
			Medications: []types.Medication{
				{Name: "Enalapril", Dosage: "10mg", Schedule: "mornings"},
			},
		},
		Memories: types.MemoryTiers{
			ShortTerm: []types.Turn{
				{Role: types.RoleUser, Text: "me duele un poco la rodilla", Timestamp: time.Unix(100, 0)},
			},
			LongTerm: []types.MemoryFact{
				{Key: "hometown", Value: "Sevilla"},
			},
		},
		Safety: []types.SafetyRule{
			{Severity: "high", Text: "Never suggest going outside alone after dark."},
		},
		Music: &types.MusicPreferences{Genres: []string{"copla"}, Era: "the 1960s"},
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	in := sampleInput()
	first := Assemble(in)
	second := Assemble(in)
	if first != second {
		t.Fatalf("two assemblies over identical input differ")
	}
}

func TestAssemble_SectionOrder(t *testing.T) {
	doc := Assemble(sampleInput())
	headings := []string{
		"## WHO YOU ARE TALKING TO",
		"## FAMILY",
		"## MEDICATIONS",
		"## RECENT CONVERSATION",
		"## SESSION NOTES",
		"## LONG-TERM MEMORY",
		"## HOW TO BEHAVE",
		"## SAFETY RULES",
		"## PHOTOS AND MUSIC",
	}
	last := -1
	for _, h := range headings {
		idx := strings.Index(doc, h)
		if idx < 0 {
			t.Fatalf("missing heading %q", h)
		}
		if idx <= last {
			t.Fatalf("heading %q out of order", h)
		}
		last = idx
	}
}

func TestAssemble_ChangingLongTermOnlyChangesThatSection(t *testing.T) {
	base := sampleInput()
	doc1 := Assemble(base)

	changed := sampleInput()
	changed.Memories.LongTerm = []types.MemoryFact{
		{Key: "hometown", Value: "Sevilla"},
		{Key: "profession", Value: "seamstress"},
	}
	doc2 := Assemble(changed)

	cut := func(doc string) (before, section, after string) {
		start := strings.Index(doc, "## LONG-TERM MEMORY")
		end := strings.Index(doc, "## HOW TO BEHAVE")
		return doc[:start], doc[start:end], doc[end:]
	}

	b1, s1, a1 := cut(doc1)
	b2, s2, a2 := cut(doc2)
	if b1 != b2 {
		t.Fatalf("text before long-term section changed")
	}
	if a1 != a2 {
		t.Fatalf("text after long-term section changed")
	}
	if s1 == s2 {
		t.Fatalf("long-term section should differ")
	}
	if !strings.Contains(s2, "profession: seamstress") {
		t.Fatalf("new fact missing from section: %q", s2)
	}
}

func TestAssemble_ToolRulesMatchParameterNames(t *testing.T) {
	doc := Assemble(sampleInput())
	// The paging instruction must name the parameter exactly as the
	// show_media schema declares it, or the AI restarts the search
	// instead of advancing.
	if !strings.Contains(doc, "show_media with nextPage=true") {
		t.Fatalf("paging instruction missing or misnamed:\n%s", doc)
	}
	if strings.Contains(doc, "next_page") {
		t.Fatalf("instruction uses a parameter name the tool does not declare:\n%s", doc)
	}
}

func TestAssemble_FamilyAndMedicationScenario(t *testing.T) {
	doc := Assemble(sampleInput())
	family := doc[strings.Index(doc, "## FAMILY"):strings.Index(doc, "## MEDICATIONS")]
	if !strings.Contains(family, "Lucia (daughter)") || !strings.Contains(family, "Mateo (grandson)") {
		t.Fatalf("family section missing entries: %q", family)
	}
	if strings.Index(family, "Lucia") > strings.Index(family, "Mateo") {
		t.Fatalf("family entries reordered")
	}
	meds := doc[strings.Index(doc, "## MEDICATIONS"):strings.Index(doc, "## RECENT CONVERSATION")]
	if !strings.Contains(meds, "Enalapril, 10mg, mornings") {
		t.Fatalf("medication missing: %q", meds)
	}
}

func TestAssemble_GenderForms(t *testing.T) {
	in := sampleInput()
	doc := Assemble(in)
	if !strings.Contains(doc, "feminine grammatical forms") {
		t.Fatalf("expected feminine forms for female identity")
	}

	in.Identity.Gender = types.GenderMale
	doc = Assemble(in)
	if !strings.Contains(doc, "masculine grammatical forms") {
		t.Fatalf("expected masculine forms for male identity")
	}

	in.Identity.Gender = ""
	doc = Assemble(in)
	if !strings.Contains(doc, "gender-neutral phrasing") {
		t.Fatalf("expected neutral phrasing fallback")
	}
}

func TestAssemble_EmptyInputStillRendersAllSections(t *testing.T) {
	doc := Assemble(Input{})
	if !strings.Contains(doc, "No family members are registered.") {
		t.Fatalf("empty family placeholder missing")
	}
	if !strings.Contains(doc, "No medications are registered.") {
		t.Fatalf("empty medications placeholder missing")
	}
	if !strings.Contains(doc, "This is the first conversation of the day.") {
		t.Fatalf("empty recent-turns placeholder missing")
	}
}
