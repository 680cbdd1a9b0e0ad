package models

// LoadStatus is the availability state of a marketplace load.
type LoadStatus string

const (
	LoadAvailable LoadStatus = "available"
	LoadRequested LoadStatus = "requested"
)

// Load represents a freight load offered on the marketplace board.
type Load struct {
	ID            string     `bson:"_id" json:"id"`
	Source        string     `bson:"source" json:"source"`
	Destination   string     `bson:"destination" json:"destination"`
	Material      string     `bson:"material" json:"material"`
	Weight        string     `bson:"weight" json:"weight"`
	ExpectedPrice int        `bson:"expected_price" json:"expected_price"` // INR
	Contact       string     `bson:"contact" json:"contact"`
	Company       string     `bson:"company" json:"company"`
	Status        LoadStatus `bson:"status" json:"status"`
	// AIAssessment is populated asynchronously by the estimator and is
	// empty until computed.
	AIAssessment string `bson:"ai_assessment,omitempty" json:"ai_assessment,omitempty"`
}
