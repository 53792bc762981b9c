package database

// Headline is a persisted, disaster-classified news item.
type Headline struct {
	ID             int64
	Title          string
	Link           string
	DisasterType   string
	PostedDatetime *string
	ArticleBody    *string
	CreatedAt      *string
}

// ReliefTemplate is a generated candidate relief effort awaiting
// promotion by an operator. is_used flips false -> true exactly once.
type ReliefTemplate struct {
	ID             int64
	HeadlineID     int64
	ReliefTitle    string
	Description    string
	MonetaryGoal   float64
	DeploymentDate *string
	IsUsed         bool
	UrgencyRank    int
	CreatedAt      *string
	UpdatedAt      *string
}

// InkindItem is an in-kind requirement line under a relief template.
type InkindItem struct {
	ID               int64
	ReliefTemplateID int64
	Item             string
	ItemDesc         string
	Quantity         int
}

// ReliefDetail is a relief template joined with its source headline and
// in-kind children, denormalized for listing.
type ReliefDetail struct {
	ReliefTemplate
	DisasterType   string
	HeadlineTitle  string
	Link           string
	PostedDatetime *string
	Inkind         []InkindItem
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalHeadlines    int
	DisasterHeadlines int
	ReliefTemplates   int
	UsedTemplates     int
	Untemplated       int
}
