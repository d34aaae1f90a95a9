package importer

// PreviewSampleRows is how many data rows a preview carries.
const PreviewSampleRows = 5

// Preview is what the operator reviews before confirming an import.
type Preview struct {
	Headers []string   `json:"headers"`
	Mapping Mapping    `json:"mapping"`
	Sample  [][]string `json:"sample"`
	Total   int        `json:"total"`
	// ClientUnmapped asks the operator to confirm the placeholder client.
	ClientUnmapped bool `json:"client_unmapped"`
}

// BuildPreview infers the mapping for table, applies override and returns
// the first rows for review.
func BuildPreview(table *Table, override Mapping) (*Preview, error) {
	m := InferMapping(table.Headers).Merge(override)
	if err := m.Validate(table.Headers); err != nil {
		return nil, err
	}
	_, hasClient := m[TargetClient]
	return &Preview{
		Headers:        table.Headers,
		Mapping:        m,
		Sample:         table.Rows[:min(PreviewSampleRows, table.Len())],
		Total:          table.Len(),
		ClientUnmapped: !hasClient,
	}, nil
}
