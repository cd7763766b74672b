package scripts

// CatalogueEntry describes a script offered to the user
type CatalogueEntry struct {
	Name        string
	Description string
}
