package memories

// Fixture represents a predefined confirmation history.
type Fixture interface {
	// Name returns the fixture's descriptive name.
	Name() string

	// Memories returns the confirmations included in this fixture.
	Memories() Memories
}

type fixture struct {
	name     string
	memories Memories
}

func (f *fixture) Name() string       { return f.name }
func (f *fixture) Memories() Memories { return f.memories }

// Predefined fixtures for common scenarios.
var (
	// FixtureCommuter has alice confirming Grab as Transport three times.
	FixtureCommuter = &fixture{
		name: "Commuter",
		memories: Memories{
			{UserID: UserAlice, Payee: "grab", Tag: "Transport", Count: 3},
		},
	}

	// FixtureMixed spreads alice's history over two tags, Transport leading.
	FixtureMixed = &fixture{
		name: "Mixed",
		memories: Memories{
			{UserID: UserAlice, Payee: "bus", Tag: "Transport", Count: 1},
			{UserID: UserAlice, Payee: "taxi", Tag: "Transport", Count: 1},
			{UserID: UserAlice, Payee: "cafe", Tag: "Food & Drinks", Count: 1},
		},
	}

	// FixtureConflicting has bob tagging the same payee two ways.
	FixtureConflicting = &fixture{
		name: "Conflicting",
		memories: Memories{
			{UserID: UserBob, Payee: "7-Eleven", Tag: "Groceries", Count: 2},
			{UserID: UserBob, Payee: "7-Eleven", Tag: "Food & Drinks", Count: 4},
		},
	}
)
