package model

// Category groups topics. Locked categories accept no new topics or replies
// from non-admins; private categories are visible only to admins and users
// holding an AccessPermission.
type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsLocked  bool   `json:"isLocked"`
	IsPrivate bool   `json:"isPrivate"`
}

// AccessPermission grants one user access to one private category.
// Any row grants read access; WriteAccess > 0 also allows posting.
type AccessPermission struct {
	CategoryID  int64 `json:"categoryId"`
	UserID      int64 `json:"userId"`
	WriteAccess int   `json:"writeAccess"`
}

// CanWrite reports whether the permission allows creating topics and replies.
func (p AccessPermission) CanWrite() bool {
	return p.WriteAccess > 0
}
