package members

// Member is a household member record as served by the member API.
// List responses fill only the first four fields.
type Member struct {
	ID           string `json:"member_id"`
	Name         string `json:"name"`
	ImagePath    string `json:"image_path"`
	IsRegistered bool   `json:"is_registered"`

	Birth          string   `json:"birth,omitempty"`
	Age            int      `json:"age,omitempty"`
	Color          string   `json:"color,omitempty"`
	FontSize       string   `json:"font_size,omitempty"`
	PreferredFoods []string `json:"preferred_foods,omitempty"`
	DislikedFoods  []string `json:"disliked_foods,omitempty"`
	Allergies      []string `json:"allergies,omitempty"`
	Diseases       []string `json:"diseases,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
}

// LoginRequest registers a member by id. Registering an existing id
// returns the existing record.
type LoginRequest struct {
	MemberID  string `json:"member_id"`
	Age       int    `json:"age"`
	ImagePath string `json:"image_path"`
}

// NewMemberRequest is the registration sent for a face the recognition
// service has not seen before.
func NewMemberRequest(id string) LoginRequest {
	return LoginRequest{MemberID: id, Age: 0, ImagePath: "null"}
}

// SliceInfo describes one page of a list response.
type SliceInfo struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	HasNext     bool `json:"hasNext"`
}

// ListResponse is one page of GET /api/members.
type ListResponse struct {
	Content   []Member  `json:"content"`
	SliceInfo SliceInfo `json:"sliceInfo"`
}
