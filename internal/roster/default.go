package roster

var defaultCharacters = []Character{
	{ID: "c1", DisplayName: "Chatterbox"},
	{ID: "c2", DisplayName: "Twinkles"},
	{ID: "c3", DisplayName: "Mr. Ratchet"},
	{ID: "c4", DisplayName: "Tessa"},
	{ID: "c5", DisplayName: "Kirk"},
	{ID: "c6", DisplayName: "Bozo"},
	{ID: "c7", DisplayName: "Bubblegum"},
	{ID: "c8", DisplayName: "Derpy"},
	{ID: "c9", DisplayName: "Ember"},
	{ID: "c10", DisplayName: "Happy"},
	{ID: "c11", DisplayName: "Hiccups"},
	{ID: "c12", DisplayName: "Moose"},
	{ID: "c13", DisplayName: "Mumbles"},
	{ID: "c14", DisplayName: "Party Hardy"},
	{ID: "c15", DisplayName: "Scruffy"},
	{ID: "c16", DisplayName: "Stumbles"},
	{ID: "c17", DisplayName: "Wendy"},
	{ID: "c18", DisplayName: "Yappy"},
	{ID: "c19", DisplayName: "Osvaldo"},
	{ID: "c20", DisplayName: "Reina"},
	{ID: "c21", DisplayName: "Sneaky"},
	{ID: "c22", DisplayName: "Tandy"},
	{ID: "c23", DisplayName: "Windsong"},
	{ID: "c24", DisplayName: "Fredrick"},
}

// Default is the built-in 24 character catalog.
func Default() *Roster {
	r, err := New(defaultCharacters)
	if err != nil {
		panic(err) // static data
	}
	return r
}
