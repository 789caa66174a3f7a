package store

// User is the object representing a known chat user. Timezone stays empty
// until the user completes the timezone selection flow.
type User struct {
	ID       string
	Name     string
	Timezone string
}
