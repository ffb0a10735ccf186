package models

// Production holds the crew board, gear list and budget of a project.
type Production struct {
	Departments []Department `json:"departments,omitempty" validate:"dive"`
	Crew        []CrewMember `json:"crew,omitempty" validate:"dive"`
	Gear        []GearItem   `json:"gear,omitempty" validate:"dive"`
	Budget      []BudgetLine `json:"budget,omitempty" validate:"dive"`
}

// Department is a column on the crew board.
type Department struct {
	ID    ID     `json:"id" validate:"required"`
	Title string `json:"title" validate:"max=100"`
}

// CrewMember is a person assigned to a department.
type CrewMember struct {
	ID     ID     `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required,max=200"`
	Role   string `json:"role,omitempty" validate:"max=100"`
	DeptID ID     `json:"deptId,omitempty"`
	Rate   Number `json:"rate,omitempty" validate:"gte=0"`
	Phone  string `json:"phone,omitempty" validate:"max=50"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
}

// GearItem is a piece of equipment on the gear list.
type GearItem struct {
	ID       ID     `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required,max=200"`
	Qty      Number `json:"qty,omitempty" validate:"gte=0"`
	Category string `json:"category,omitempty" validate:"max=100"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=Owned Rented owned rented"`
}

// BudgetLine is one expense with estimated and actual cost.
type BudgetLine struct {
	ID       ID     `json:"id" validate:"required"`
	Desc     string `json:"desc" validate:"required,max=200"`
	Category string `json:"category,omitempty" validate:"max=100"`
	EstCost  Number `json:"estCost,omitempty"`
	ActCost  Number `json:"actCost,omitempty"`
}

// BudgetSummary totals a project's budget lines.
type BudgetSummary struct {
	TotalEstimated float64            `json:"totalEstimated"`
	TotalActual    float64            `json:"totalActual"`
	Remaining      float64            `json:"remaining"`
	ByCategory     map[string]float64 `json:"byCategory"`
	Lines          int                `json:"lines"`
}

// BudgetSummary computes totals; ByCategory sums actual cost per category.
func (p *Production) BudgetSummary() BudgetSummary {
	s := BudgetSummary{ByCategory: make(map[string]float64)}
	for _, b := range p.Budget {
		s.TotalEstimated += b.EstCost.Float64()
		s.TotalActual += b.ActCost.Float64()
		cat := b.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		s.ByCategory[cat] += b.ActCost.Float64()
	}
	s.Remaining = s.TotalEstimated - s.TotalActual
	s.Lines = len(p.Budget)
	return s
}

// CrewInDepartment returns the crew assigned to the given department.
func (p *Production) CrewInDepartment(deptID ID) []CrewMember {
	var members []CrewMember
	for _, c := range p.Crew {
		if c.DeptID == deptID {
			members = append(members, c)
		}
	}
	return members
}
