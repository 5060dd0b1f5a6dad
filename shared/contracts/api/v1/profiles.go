package v1

import "time"

const (
	PathProfiles  = "/profiles/"
	PathProfileMe = "/profiles/me/"
	PathInterests = "/interests/"
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
)

// Interest is a selectable profile interest.
type Interest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Profile mirrors the backend profile serializer.
type Profile struct {
	ID                int64     `json:"id"`
	User              int64     `json:"user"`
	Name              string    `json:"name"`
	DOB               *string   `json:"dob"`
	Gender            string    `json:"gender"`
	City              string    `json:"city"`
	Religion          string    `json:"religion"`
	Education         string    `json:"education"`
	Profession        string    `json:"profession"`
	Interests         []int64   `json:"interests"`
	Bio               string    `json:"bio"`
	Photos            []string  `json:"photos"`
	IsEmailVerified   bool      `json:"is_email_verified"`
	PreferredGender   string    `json:"preferred_gender"`
	PreferredAgeMin   *int      `json:"preferred_age_min"`
	PreferredAgeMax   *int      `json:"preferred_age_max"`
	PreferredCity     string    `json:"preferred_city"`
	PreferredReligion string    `json:"preferred_religion"`
	Age               *int      `json:"age"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProfilePatch is a partial update of the caller's profile.
type ProfilePatch struct {
	Name              *string   `json:"name,omitempty"`
	DOB               *string   `json:"dob,omitempty"`
	Gender            *string   `json:"gender,omitempty"`
	City              *string   `json:"city,omitempty"`
	Religion          *string   `json:"religion,omitempty"`
	Education         *string   `json:"education,omitempty"`
	Profession        *string   `json:"profession,omitempty"`
	Interests         *[]int64  `json:"interests,omitempty"`
	Bio               *string   `json:"bio,omitempty"`
	Photos            *[]string `json:"photos,omitempty"`
	PreferredGender   *string   `json:"preferred_gender,omitempty"`
	PreferredAgeMin   *int      `json:"preferred_age_min,omitempty"`
	PreferredAgeMax   *int      `json:"preferred_age_max,omitempty"`
	PreferredCity     *string   `json:"preferred_city,omitempty"`
	PreferredReligion *string   `json:"preferred_religion,omitempty"`
}
