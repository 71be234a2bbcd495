package models

// TableInfo describes a supported ticket-like table
type TableInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FieldInfo describes a selectable field
type FieldInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FilterFieldInfo describes a filterable field and its choice values
type FilterFieldInfo struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        string            `json:"type"`
	Examples    []string          `json:"examples,omitempty"`
	Values      map[string]string `json:"values,omitempty"`
}

// Tables is the fixed catalog of supported tables, in display order
var Tables = []TableInfo{
	{Key: "incident", Name: "Incidents", Description: "IT service disruptions and issues"},
	{Key: "sc_request", Name: "Service Requests", Description: "User requests for services or items"},
	{Key: "sc_task", Name: "Catalog Tasks", Description: "Tasks created from service requests"},
	{Key: "change_request", Name: "Change Requests", Description: "Changes to IT infrastructure"},
	{Key: "problem", Name: "Problems", Description: "Root cause of incidents"},
}

// Fields is the fixed catalog of selectable fields, in display order
var Fields = []FieldInfo{
	{Key: "number", Name: "Ticket Number", Description: "Unique identifier (e.g., INC0001234)"},
	{Key: "short_description", Name: "Short Description", Description: "Brief summary of the issue"},
	{Key: "description", Name: "Description", Description: "Detailed description of the issue"},
	{Key: "state", Name: "State", Description: "Current status of the ticket"},
	{Key: "priority", Name: "Priority", Description: "Business priority level"},
	{Key: "urgency", Name: "Urgency", Description: "How quickly resolution is needed"},
	{Key: "impact", Name: "Impact", Description: "Business impact level"},
	{Key: "category", Name: "Category", Description: "Primary classification"},
	{Key: "subcategory", Name: "Subcategory", Description: "Secondary classification"},
	{Key: "assigned_to", Name: "Assigned To", Description: "Person responsible for resolution"},
	{Key: "assignment_group", Name: "Assignment Group", Description: "Team responsible for resolution"},
	{Key: "opened_at", Name: "Opened At", Description: "When the ticket was created"},
	{Key: "updated_at", Name: "Updated At", Description: "Last modification time"},
	{Key: "sys_created_on", Name: "Created On", Description: "System creation timestamp"},
	{Key: "caller_id", Name: "Caller", Description: "Person who reported the issue"},
	{Key: "sys_id", Name: "System ID", Description: "Internal database identifier"},
	{Key: "close_code", Name: "Close Code", Description: "Resolution classification"},
	{Key: "close_notes", Name: "Close Notes", Description: "Resolution details"},
	{Key: "work_notes", Name: "Work Notes", Description: "Internal work documentation"},
	{Key: "business_service", Name: "Business Service", Description: "Affected service"},
	{Key: "cmdb_ci", Name: "Configuration Item", Description: "Affected infrastructure component"},
	{Key: "location", Name: "Location", Description: "Physical location"},
	{Key: "company", Name: "Company", Description: "Requesting organization"},
}

// FilterFields is the catalog of filterable fields
var FilterFields = []FilterFieldInfo{
	{Key: "assigned_to", Name: "Assigned To", Description: "Filter by assignee", Type: "user",
		Examples: []string{"javascript:gs.getUserID()", "admin", "john.doe"}},
	{Key: "assignment_group", Name: "Assignment Group", Description: "Filter by assignment group", Type: "reference",
		Examples: []string{"IT Support", "Network Team", "Service Desk"}},
	{Key: "state", Name: "State", Description: "Current ticket status", Type: "choice",
		Values: map[string]string{"1": "New", "2": "In Progress", "3": "On Hold", "4": "Resolved", "6": "Resolved", "7": "Closed", "8": "Canceled"}},
	{Key: "active", Name: "Active", Description: "Whether the record is active", Type: "choice",
		Values: map[string]string{"true": "Active", "false": "Inactive"}},
	{Key: "priority", Name: "Priority", Description: "Business priority level", Type: "choice",
		Values: map[string]string{"1": "Critical", "2": "High", "3": "Moderate", "4": "Low", "5": "Planning"}},
	{Key: "urgency", Name: "Urgency", Description: "Speed of resolution needed", Type: "choice",
		Values: map[string]string{"1": "High", "2": "Medium", "3": "Low"}},
	{Key: "impact", Name: "Impact", Description: "Business impact level", Type: "choice",
		Values: map[string]string{"1": "High", "2": "Medium", "3": "Low"}},
	{Key: "category", Name: "Category", Description: "Primary classification", Type: "string",
		Examples: []string{"Hardware", "Software", "Network", "Security"}},
	{Key: "caller_id", Name: "Caller", Description: "Person who reported the issue", Type: "user",
		Examples: []string{"javascript:gs.getUserID()", "john.doe"}},
	{Key: "opened_at", Name: "Opened Date", Description: "When ticket was created", Type: "date",
		Examples: []string{"2024-01-01", "javascript:gs.daysAgoStart(7)"}},
	{Key: "sys_created_on", Name: "Created Date", Description: "System creation date", Type: "date",
		Examples: []string{"2024-01-01", "javascript:gs.daysAgoStart(30)"}},
	{Key: "number", Name: "Ticket Number", Description: "Specific ticket number", Type: "string",
		Examples: []string{"INC0001234", "REQ0005678"}},
	{Key: "short_description", Name: "Short Description", Description: "Search in summary text", Type: "string",
		Examples: []string{"password", "network", "email"}},
}

// LookupTable returns the catalog entry for a table key
func LookupTable(key string) (TableInfo, bool) {
	for _, t := range Tables {
		if t.Key == key {
			return t, true
		}
	}
	return TableInfo{}, false
}

// TableName returns the human-readable table name, or the key itself
func TableName(key string) string {
	if t, ok := LookupTable(key); ok {
		return t.Name
	}
	return key
}

// LookupField returns the catalog entry for a field key
func LookupField(key string) (FieldInfo, bool) {
	for _, f := range Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// FieldName returns the human-readable field name, or the key itself
func FieldName(key string) string {
	if f, ok := LookupField(key); ok {
		return f.Name
	}
	return key
}

// LookupFilterField returns the filter catalog entry for a field key
func LookupFilterField(key string) (FilterFieldInfo, bool) {
	for _, f := range FilterFields {
		if f.Key == key {
			return f, true
		}
	}
	return FilterFieldInfo{}, false
}

// ChoiceLabel returns the readable label for a raw choice code
func ChoiceLabel(field, value string) (string, bool) {
	f, ok := LookupFilterField(field)
	if !ok || f.Values == nil {
		return "", false
	}
	label, ok := f.Values[value]
	return label, ok
}
