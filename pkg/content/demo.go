package content

type demoState struct {
	name          string
	content       string
	interactionID string
}

type demoExploration struct {
	title     string
	category  string
	objective string
	states    []demoState
}

type demoCollection struct {
	title          string
	category       string
	objective      string
	explorationIDs []string
}

// Demo explorations keyed by id. The first state is the initial state.
var demoExplorations = map[string]demoExploration{
	"0": {
		title:     "Welcome to Oppia!",
		category:  "Welcome",
		objective: "become familiar with Oppia's capabilities",
		states: []demoState{
			{DefaultInitStateName, "<p>Hi, welcome to Oppia! What would you like to do?</p>", InteractionMultipleChoice},
			{"Estimate 100", "<p>What is 10 times 10?</p>", InteractionNumericInput},
			{"End", "<p>Congratulations, you have finished!</p>", InteractionEndExploration},
		},
	},
	"1": {
		title:     "Project Euler Problem 1",
		category:  "Coding",
		objective: "solve Problem 1 on the Project Euler site",
		states: []demoState{
			{DefaultInitStateName, "<p>Find the sum of all the multiples of 3 or 5 below 1000.</p>", InteractionNumericInput},
			{"End", "<p>Well done.</p>", InteractionEndExploration},
		},
	},
	"2": {
		title:     "The Lazy Magician",
		category:  "Mathematics",
		objective: "discover the binary search algorithm",
		states: []demoState{
			{DefaultInitStateName, "<p>Pick a number between 1 and 100.</p>", InteractionContinue},
			{"Guess", "<p>Is it higher or lower?</p>", InteractionMultipleChoice},
			{"End", "<p>The magician found your number.</p>", InteractionEndExploration},
		},
	},
	"3": {
		title:     "Root Linear Coefficient Theorem",
		category:  "Mathematics",
		objective: "discover the Root Linear Coefficient Theorem",
		states: []demoState{
			{DefaultInitStateName, "<p>What is the sum of the roots of x^2 - 5x + 6?</p>", InteractionTextInput},
			{"End", "<p>The sum equals the negated linear coefficient.</p>", InteractionEndExploration},
		},
	},
	"6": {
		title:     "What is a Fraction?",
		category:  "Mathematics",
		objective: "learn what a fraction is",
		states: []demoState{
			{DefaultInitStateName, "<p>A fraction is a part of a whole.</p>", InteractionContinue},
			{"Parts of a fraction", "<p>Which number is the denominator in 3/4?</p>", InteractionNumericInput},
			{"End", "<p>Great work.</p>", InteractionEndExploration},
		},
	},
	"13": {
		title:     "Equivalent Fractions",
		category:  "Mathematics",
		objective: "recognize fractions that have the same value",
		states: []demoState{
			{DefaultInitStateName, "<p>Is 1/2 the same as 2/4?</p>", InteractionMultipleChoice},
			{"End", "<p>Equivalent fractions name the same amount.</p>", InteractionEndExploration},
		},
	},
	"25": {
		title:     "Comparing Fractions",
		category:  "Mathematics",
		objective: "compare fractions with unlike denominators",
		states: []demoState{
			{DefaultInitStateName, "<p>Which is bigger, 2/3 or 3/5?</p>", InteractionTextInput},
			{"End", "<p>Compare by finding a common denominator.</p>", InteractionEndExploration},
		},
	},
}

// Demo collections keyed by id.
var demoCollections = map[string]demoCollection{
	"0": {
		title:          "Welcome to Oppia!",
		category:       "Welcome",
		objective:      "become familiar with Oppia's capabilities",
		explorationIDs: []string{"0", "1", "2"},
	},
}

// Explorations reused as story chapters for generated structures.
var dummyStoryExplorationIDs = []string{"6", "25", "13"}

func (d demoExploration) build(id, ownerID string) Exploration {
	exp := Exploration{
		ID:            id,
		Title:         d.title,
		Category:      d.category,
		Objective:     d.objective,
		LanguageCode:  "en",
		OwnerID:       ownerID,
		InitStateName: d.states[0].name,
		States:        make(map[string]State, len(d.states)),
	}
	for _, st := range d.states {
		exp.States[st.name] = State{Content: st.content, InteractionID: st.interactionID}
	}
	return exp
}
