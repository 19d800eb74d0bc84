package domain

// Action - действие, на которое проверяется разрешение
type Action string

const (
	ActionEnter       Action = "enter"
	ActionModerate    Action = "moderate"
	ActionAddOccupant Action = "add_occupant"
)

type ACLEntry struct {
	Username string `json:"username"`
	Action   Action `json:"action"`
}
