package search

// DefaultIndexName is the index holding catalog item documents.
const DefaultIndexName = "catalog_items"

// indexSettings returns the analysis settings of the catalog index.
func indexSettings() map[string]interface{} {
	return map[string]interface{}{
		"analysis": map[string]interface{}{
			"analyzer": map[string]interface{}{
				"catalog_text": map[string]interface{}{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "asciifolding", "catalog_stop", "catalog_stemmer"},
				},
			},
			"filter": map[string]interface{}{
				"catalog_stop": map[string]interface{}{
					"type":      "stop",
					"stopwords": "_english_",
				},
				"catalog_stemmer": map[string]interface{}{
					"type":     "stemmer",
					"language": "light_english",
				},
			},
			"normalizer": map[string]interface{}{
				"lowercase_normalizer": map[string]interface{}{
					"type":   "custom",
					"filter": []string{"lowercase", "asciifolding"},
				},
			},
		},
	}
}

// indexMappings returns the strict field mapping of Document.
func indexMappings() map[string]interface{} {
	keyword := func() map[string]interface{} {
		return map[string]interface{}{"type": "keyword", "ignore_above": 256}
	}
	date := func() map[string]interface{} {
		return map[string]interface{}{"type": "date", "format": "strict_date_optional_time"}
	}

	return map[string]interface{}{
		"dynamic": false,
		"properties": map[string]interface{}{
			"id": map[string]interface{}{"type": "keyword"},
			"name": map[string]interface{}{
				"type":     "text",
				"analyzer": "catalog_text",
				"fields": map[string]interface{}{
					"raw": keyword(),
				},
			},
			"name_sort": map[string]interface{}{
				"type":       "keyword",
				"normalizer": "lowercase_normalizer",
			},
			"description": map[string]interface{}{
				"type":     "text",
				"analyzer": "catalog_text",
			},
			"category":       keyword(),
			"category_terms": keyword(),
			"price":          map[string]interface{}{"type": "double"},
			"stock":          map[string]interface{}{"type": "integer"},
			"available":      map[string]interface{}{"type": "boolean"},
			"created_at":     date(),
			"updated_at":     date(),
			"name_suggest":   map[string]interface{}{"type": "completion"},
		},
	}
}

// indexBody is the create-index request body.
func indexBody() map[string]interface{} {
	return map[string]interface{}{
		"settings": indexSettings(),
		"mappings": indexMappings(),
	}
}
