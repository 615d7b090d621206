package enrich

import (
	"context"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// ClassifyStep tags the lead as a manufacturer or vendor from its listing
// category and the query that found it.
func ClassifyStep() Step {
	return Step{
		Name: StepClassify,
		Run: func(_ context.Context, lead *model.Lead, _ Notify) error {
			lead.BusinessType = string(classify.BusinessKind(lead.Category, lead.SourceQuery))
			return nil
		},
		Placeholder: func(lead *model.Lead) {
			lead.BusinessType = string(classify.Unknown)
		},
	}
}
