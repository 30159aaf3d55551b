package nlp

import (
	"regexp"
)

// CategoryEmail is the entity category produced by the email pipeline.
const CategoryEmail = "EMAIL"

// emailPattern matches RFC-5322-ish addresses. Deliberately permissive
// on the local part; the index tolerates over-matching better than
// missed mentions.
var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// EmailPipeline extracts email addresses from document content. It is
// language independent, so Initialize always succeeds and Terminate is
// a no-op.
type EmailPipeline struct{}

var _ Pipeline = (*EmailPipeline)(nil)

func NewEmailPipeline() *EmailPipeline {
	return &EmailPipeline{}
}

func (p *EmailPipeline) Type() string {
	return "EMAIL"
}

func (p *EmailPipeline) Initialize(_ string) bool {
	return true
}

func (p *EmailPipeline) Process(content, _, _ string) ([]Annotation, error) {
	matches := emailPattern.FindAllStringIndex(content, -1)
	annotations := make([]Annotation, 0, len(matches))
	for _, m := range matches {
		annotations = append(annotations, Annotation{
			Begin:    m[0],
			End:      m[1],
			Category: CategoryEmail,
		})
	}
	return annotations, nil
}

func (p *EmailPipeline) Terminate(_ string) {}
