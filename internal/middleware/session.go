package middleware

// UserIDKey is the session key under which the logged-in user's ID is stored.
const UserIDKey = "user_id"
