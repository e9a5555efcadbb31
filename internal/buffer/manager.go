package buffer

// Manager splits a global buffer budget across the joins of one compiled plan.
// It is an immutable value threaded through compilation, so plans compiled
// with different budgets never share state.
type Manager struct {
	total    int
	numJoins int
}

// NewManager creates a policy for total pages shared by numJoins join operators.
func NewManager(total, numJoins int) Manager {
	return Manager{total: total, numJoins: numJoins}
}

// Total returns the whole budget. Distinct and GroupBy run with this many pages.
func (m Manager) Total() int {
	return m.total
}

// NumJoins returns the number of joins sharing the budget.
func (m Manager) NumJoins() int {
	return m.numJoins
}

// PerJoin returns the even share of the budget given to each join.
func (m Manager) PerJoin() int {
	if m.numJoins <= 0 {
		return m.total
	}
	return m.total / m.numJoins
}
