package gift

import "testing"

const flawedBank = `$CATEGORY: Anatomia

::1::Which bone is the longest?
{
~ Tibia
~ Humerus
}

::2::Pick the sesamoid bone.
{
= Patella
= Pisiform
~ Sternum
}

$CATEGORY: Fisiologia

::3::Which ion drives the upstroke?
{
= Sodium
}

::4::Which ion repolarizes the membrane?
{
= Potassium
~ Chloride
}
`

func TestValidateFlagsFlawedQuestions(t *testing.T) {
	rep := Validate(Parse(flawedBank))

	if rep.TotalQuestions != 4 {
		t.Fatalf("total = %d", rep.TotalQuestions)
	}
	if rep.Categories["Anatomia"] != 2 || rep.Categories["Fisiologia"] != 2 {
		t.Fatalf("categories = %v", rep.Categories)
	}
	if len(rep.NoCorrect) != 1 || rep.NoCorrect[0] != "1" {
		t.Fatalf("no correct = %v", rep.NoCorrect)
	}
	if len(rep.MultipleCorrect) != 1 || rep.MultipleCorrect[0] != "2" {
		t.Fatalf("multiple correct = %v", rep.MultipleCorrect)
	}
	if len(rep.TooFewOptions) != 1 || rep.TooFewOptions[0] != "3" {
		t.Fatalf("too few options = %v", rep.TooFewOptions)
	}
	if rep.Clean() {
		t.Fatal("flawed bank reported clean")
	}
}

func TestValidateCleanBank(t *testing.T) {
	rep := Validate(Parse("::1::Is water wet?{=yes~no}\n"))
	if rep.TotalQuestions != 1 || !rep.Clean() {
		t.Fatalf("report = %+v", rep)
	}
}
