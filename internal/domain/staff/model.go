package staff

// Employee is a staff member in the users collection. UID links the
// employee to the sign-in account created with them.
type Employee struct {
	ID             string `json:"id"`
	UID            string `json:"uid,omitempty"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Qualification  string `json:"qualification,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Salary         string `json:"salary,omitempty"`
	// Dashboard is empty for roles that cannot sign in (security, cleaner).
	Dashboard string `json:"dashboard,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// EmployeeInput creates an employee.
type EmployeeInput struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Qualification  string `json:"qualification,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Salary         string `json:"salary,omitempty"`
}

// EmployeeUpdate edits an employee; nil fields are left alone.
type EmployeeUpdate struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Role           *string `json:"role"`
	Qualification  *string `json:"qualification"`
	Specialization *string `json:"specialization"`
	Salary         *string `json:"salary"`
}

// Entry is one attendance line. Timestamp is set when the line is first
// recorded and decides which day it belongs to.
type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CheckIn   string `json:"checkIn"`
	CheckOut  string `json:"checkOut"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"createdAt"`
}

// EntryInput records or corrects an attendance line. Times are HH:MM.
type EntryInput struct {
	Name     string `json:"name"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

// Day is the attendance sheet of one calendar day (UTC).
type Day struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
	// Counts holds, per employee name, the number of checked-in lines.
	// Every employee on the roster appears, with zero when absent.
	Counts map[string]int `json:"counts"`
}
