package cms

import "context"

// BlockContext is handed to block factories by the content field that
// embeds them.
type BlockContext struct {
	// Context is the context the content field's list is being created
	// with. Blocks creating lists of their own use it.
	Context context.Context
	// FromList is the list the content field is declared on.
	FromList string
	// JoinList is the list receiving the block's injected fields.
	JoinList string
	Registry *Registry
	// Adapter is the file adapter configured on the content field, passed
	// through to blocks that store files.
	Adapter FileAdapter
}

// Block is a rich-text block type embedded in a content field.
type Block interface {
	Type() string
	Path() string
	AdminViews() []string
	// FieldDefinitions returns fields to inject into the join list.
	FieldDefinitions() map[string]FieldConfig
	// MutationOperationResults reports what the block's injected fields
	// wrote during the current request.
	MutationOperationResults(ctx context.Context) map[string]interface{}
	ViewOptions() map[string]interface{}
}

type BlockFactory func(bc BlockContext) (Block, error)
