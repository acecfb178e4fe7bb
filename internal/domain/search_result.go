package domain

// Hit — товар и его близость к запросу.
type Hit struct {
	ProductID string
	Score     float32
}

// SearchResult — результат поиска: уникальные товары по убыванию близости.
type SearchResult struct {
	Hits            []Hit
	RegionsDetected int
	RegionsFailed   int
	IndexVersion    string
}

func NewSearchResult(hits []Hit, detected int, failed int, indexVersion string) *SearchResult {
	if hits == nil {
		hits = []Hit{}
	}

	return &SearchResult{
		Hits:            hits,
		RegionsDetected: detected,
		RegionsFailed:   failed,
		IndexVersion:    indexVersion,
	}
}
