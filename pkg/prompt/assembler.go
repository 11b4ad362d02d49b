// Package prompt assembles the instruction document sent to the AI backend.
//
// Assembly is a pure function: section order is fixed and two calls with
// identical inputs produce byte-identical output, which is what makes the
// in-place instruction refresh verifiable.
package prompt

import (
	"fmt"
	"strings"

	"github.com/amparo-ai/amparo/pkg/core/types"
)

// Input carries everything the assembler renders. Slices are rendered in the
// order given; the assembler never reorders collaborator data.
type Input struct {
	Identity types.Identity
	Memories types.MemoryTiers
	Safety   []types.SafetyRule
	Music    *types.MusicPreferences
}

// Assemble renders the instruction document. Section order is fixed:
// identity/grammar, family roster, medications, recent turns, session facts,
// long-term facts, behavioral directives, safety rules, media/audio tool rules.
func Assemble(in Input) string {
	var b strings.Builder

	writeIdentity(&b, in.Identity)
	writeFamily(&b, in.Identity.Family)
	writeMedications(&b, in.Identity.Medications)
	writeRecentTurns(&b, in.Memories.ShortTerm)
	writeFacts(&b, "SESSION NOTES", in.Memories.MidTerm)
	writeFacts(&b, "LONG-TERM MEMORY", in.Memories.LongTerm)
	writeBehavior(&b, in.Identity)
	writeSafety(&b, in.Safety)
	writeToolRules(&b, in.Music)

	return b.String()
}

func writeIdentity(b *strings.Builder, id types.Identity) {
	b.WriteString("## WHO YOU ARE TALKING TO\n")
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = "the user"
	}
	fmt.Fprintf(b, "You are a warm voice companion speaking with %s", name)
	if id.Age > 0 {
		fmt.Fprintf(b, ", age %d", id.Age)
	}
	b.WriteString(".\n")

	lang := strings.TrimSpace(id.Language)
	if lang == "" {
		lang = "es"
	}
	fmt.Fprintf(b, "Speak only in language %q, in short, clear sentences.\n", lang)

	switch id.Gender {
	case types.GenderFemale:
		b.WriteString("The user is a woman: use feminine grammatical forms, articles and adjective agreement when addressing her.\n")
	case types.GenderMale:
		b.WriteString("The user is a man: use masculine grammatical forms, articles and adjective agreement when addressing him.\n")
	default:
		b.WriteString("Use gender-neutral phrasing when addressing the user.\n")
	}

	if mode := strings.TrimSpace(id.CognitiveMode); mode != "" {
		fmt.Fprintf(b, "Cognitive support mode: %s. Keep one idea per sentence, repeat gently when asked, never quiz the user on what they forgot.\n", mode)
	}
	b.WriteString("\n")
}

func writeFamily(b *strings.Builder, family []types.FamilyMember) {
	b.WriteString("## FAMILY\n")
	if len(family) == 0 {
		b.WriteString("No family members are registered.\n\n")
		return
	}
	for _, m := range family {
		fmt.Fprintf(b, "- %s (%s)\n", m.Name, m.Relation)
	}
	b.WriteString("\n")
}

func writeMedications(b *strings.Builder, meds []types.Medication) {
	b.WriteString("## MEDICATIONS\n")
	if len(meds) == 0 {
		b.WriteString("No medications are registered.\n\n")
		return
	}
	for _, m := range meds {
		fmt.Fprintf(b, "- %s, %s, %s\n", m.Name, m.Dosage, m.Schedule)
	}
	b.WriteString("\n")
}

func writeRecentTurns(b *strings.Builder, turns []types.Turn) {
	b.WriteString("## RECENT CONVERSATION\n")
	if len(turns) == 0 {
		b.WriteString("This is the first conversation of the day.\n\n")
		return
	}
	for _, t := range turns {
		fmt.Fprintf(b, "- %s: %s\n", t.Role, t.Text)
	}
	b.WriteString("\n")
}

func writeFacts(b *strings.Builder, heading string, facts []types.MemoryFact) {
	fmt.Fprintf(b, "## %s\n", heading)
	if len(facts) == 0 {
		b.WriteString("Nothing recorded yet.\n\n")
		return
	}
	for _, f := range facts {
		fmt.Fprintf(b, "- %s: %s\n", f.Key, f.Value)
	}
	b.WriteString("\n")
}

func writeBehavior(b *strings.Builder, id types.Identity) {
	b.WriteString("## HOW TO BEHAVE\n")
	b.WriteString("Be patient and unhurried; silence is fine.\n")
	b.WriteString("Never mention that you are an AI, a program or a tool.\n")
	b.WriteString("When the user shares something personal that seems worth remembering, call extract_memory.\n")
	b.WriteString("If the user sounds distressed, confused about their location, or mentions pain, falls or not taking medication, call raise_safety_alert.\n")
	name := strings.TrimSpace(id.Name)
	if name != "" {
		fmt.Fprintf(b, "Use the name %s naturally, not in every sentence.\n", name)
	}
	b.WriteString("\n")
}

func writeSafety(b *strings.Builder, rules []types.SafetyRule) {
	b.WriteString("## SAFETY RULES\n")
	if len(rules) == 0 {
		b.WriteString("No additional safety rules.\n\n")
		return
	}
	for _, r := range rules {
		fmt.Fprintf(b, "- [%s] %s\n", r.Severity, r.Text)
	}
	b.WriteString("\n")
}

func writeToolRules(b *strings.Builder, music *types.MusicPreferences) {
	b.WriteString("## PHOTOS AND MUSIC\n")
	b.WriteString("When the user asks to see photos, call show_media. Photos are shown one at a time: describe the current photo, wait for the user's reaction, then call show_media with nextPage=true for the following one.\n")
	b.WriteString("When the user asks for music or a story, call play_audio; call stop_audio when they ask to stop or want to talk again.\n")
	if music != nil {
		if len(music.Genres) > 0 {
			fmt.Fprintf(b, "Preferred genres: %s.\n", strings.Join(music.Genres, ", "))
		}
		if len(music.Artists) > 0 {
			fmt.Fprintf(b, "Favorite artists: %s.\n", strings.Join(music.Artists, ", "))
		}
		if era := strings.TrimSpace(music.Era); era != "" {
			fmt.Fprintf(b, "They especially enjoy music from %s.\n", era)
		}
	}
}
