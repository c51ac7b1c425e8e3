package dto

// CheckLoginResponse - состояние сессии для фронтенда
type CheckLoginResponse struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

// UserInfoResponse - данные профиля текущего пользователя
type UserInfoResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
	IsAdmin  bool   `json:"is_admin"`
}

// ExistsResponse - ответ проверок занятости имени и email
type ExistsResponse struct {
	Exists bool `json:"exists"`
}
