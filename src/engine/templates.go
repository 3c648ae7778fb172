package engine

import "fmt"

// PromptTemplate is one registered prompt for generating a document type.
type PromptTemplate struct {
	ID      string
	Name    string
	DocType DocType
	Prompt  string
}

// TemplateRegistry holds the prompt templates available per document type.
// The first template registered for a type is its default.
type TemplateRegistry struct {
	byID   map[string]PromptTemplate
	byType map[DocType][]PromptTemplate
}

// NewTemplateRegistry creates a registry from the configured templates.
func NewTemplateRegistry(templates []PromptTemplate) *TemplateRegistry {
	r := &TemplateRegistry{
		byID:   make(map[string]PromptTemplate),
		byType: make(map[DocType][]PromptTemplate),
	}
	for _, t := range templates {
		r.byID[t.ID] = t
		r.byType[t.DocType] = append(r.byType[t.DocType], t)
	}
	return r
}

// Resolve returns the template to use for a document type. An empty id
// selects the type's default; a registry without templates for the type
// yields an empty template, which the provider treats as "use your own
// judgment".
func (r *TemplateRegistry) Resolve(docType DocType, id string) (PromptTemplate, error) {
	if id == "" {
		if templates := r.byType[docType]; len(templates) > 0 {
			return templates[0], nil
		}
		return PromptTemplate{DocType: docType}, nil
	}

	t, ok := r.byID[id]
	if !ok {
		return PromptTemplate{}, fmt.Errorf("template %q not registered", id)
	}
	if t.DocType != docType {
		return PromptTemplate{}, fmt.Errorf("template %q targets %s, not %s", id, t.DocType, docType)
	}
	return t, nil
}

// ForType returns all templates registered for a document type.
func (r *TemplateRegistry) ForType(docType DocType) []PromptTemplate {
	return append([]PromptTemplate(nil), r.byType[docType]...)
}
