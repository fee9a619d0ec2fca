package ultrabuf

import "github.com/hazyhaar/ultradoc/wire"

// Result is the decoded form of one ultrabuf payload.
type Result struct {
	Version         uint64           `json:"version"`
	Mutations       []Mutation       `json:"mutations"`
	Images          []ImageInfo      `json:"images"`
	TextboxMappings []TextboxMapping `json:"textbox_mappings"`
}

// Options tunes Parse.
type Options struct {
	// MaxDepth bounds wire recursion. Zero means wire.DefaultMaxDepth.
	MaxDepth int
}

// Parse decodes a wire buffer into Mutations and their derived tables.
// It never fails: malformed regions yield fewer Mutations.
func Parse(payload []byte, opts Options) *Result {
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = wire.DefaultMaxDepth
	}
	fields := wire.DecodeDepth(payload, depth)
	muts := Mutations(fields)

	res := &Result{
		Version:         Version(fields),
		Mutations:       muts,
		Images:          []ImageInfo{},
		TextboxMappings: TextboxMappings(muts),
	}
	for i := range muts {
		if muts[i].ImageInfo != nil {
			res.Images = append(res.Images, *muts[i].ImageInfo)
		}
	}
	if res.TextboxMappings == nil {
		res.TextboxMappings = []TextboxMapping{}
	}
	return res
}

// Text returns the document buffer: the text of the first insert-string
// Mutation with non-empty text.
func Text(muts []Mutation) string {
	for i := range muts {
		if muts[i].Type == InsertString && muts[i].Text != "" {
			return muts[i].Text
		}
	}
	return ""
}
