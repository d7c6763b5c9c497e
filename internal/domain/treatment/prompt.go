package treatment

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an agricultural plant pathologist who writes practical, safe advice for small growers."

// BuildPrompt asks for a structured plan a non-expert grower can follow.
func BuildPrompt(species, disease, severity string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A %s plant has been diagnosed with %s at %s severity.\n", species, disease, strings.ToLower(severity))
	b.WriteString("Write a treatment plan for a grower without formal training. Use these sections:\n")
	b.WriteString("1. Treatment substances: name each product or active ingredient with its concentration or dilution rate.\n")
	b.WriteString("2. Application schedule: how often and for how long to apply, and the best time of day.\n")
	b.WriteString("3. Cultural practices: pruning, sanitation, drainage, shading and spacing changes.\n")
	b.WriteString("4. Preventive measures: what to do so the disease does not return.\n")
	b.WriteString("5. Monitoring: signs of improvement or worsening and when to seek expert help.\n")
	b.WriteString("Keep the language plain and the answer under 400 words.")
	return b.String()
}
