// Package memories provides test infrastructure for seeding user tag memory.
// It offers a fluent API for describing confirmations and predefined
// histories for common prediction scenarios.
//
// Example usage:
//
//	mems := memories.NewBuilder(t).
//		WithFixture(memories.FixtureCommuter).
//		WithConfirmation(memories.UserAlice, "Tesco", "Groceries", 2).
//		Memories()
//
//	db := testutil.SetupTestDB(t, mems)
package memories
