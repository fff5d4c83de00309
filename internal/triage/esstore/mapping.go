package esstore

type props = map[string]any

var (
	keyword   = props{"type": "keyword"}
	date      = props{"type": "date"}
	integer   = props{"type": "integer"}
	float     = props{"type": "float"}
	plainText = props{"type": "text"}
	textField = props{"type": "text", "fields": props{"keyword": keyword}}
)

// mappings are the explicit index mappings. Keyword fields back the term
// filters, sorts and aggregations used by Store.
var mappings = map[string]props{
	TicketsIndex: {"properties": props{
		"ticket_id":               keyword,
		"subject":                 textField,
		"description":             textField,
		"customer_id":             keyword,
		"status":                  keyword,
		"category":                keyword,
		"priority":                keyword,
		"assigned_team":           keyword,
		"tags":                    keyword,
		"created_at":              date,
		"updated_at":              date,
		"resolution_time_minutes": integer,
	}},
	ArticlesIndex: {"properties": props{
		"article_id":    keyword,
		"title":         textField,
		"content":       plainText,
		"category":      keyword,
		"tags":          keyword,
		"helpful_count": integer,
	}},
	CustomersIndex: {"properties": props{
		"customer_id":        keyword,
		"plan":               keyword,
		"satisfaction_score": float,
		"created_at":         date,
	}},
	ActionsIndex: {"properties": props{
		"action_id":        keyword,
		"ticket_id":        keyword,
		"agent_name":       keyword,
		"action_type":      keyword,
		"details":          props{"type": "object", "enabled": true},
		"confidence_score": float,
		"timestamp":        date,
	}},
}
