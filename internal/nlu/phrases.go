package nlu

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Phrases holds the canned replies. It is read-only once a Classifier owns it.
type Phrases struct {
	Greetings []string          `yaml:"greetings"`
	Farewells []string          `yaml:"farewells"`
	Jokes     []string          `yaml:"jokes"`
	Emotions  map[string]string `yaml:"emotions"`
}

const (
	emotionSad   = "sad"
	emotionHappy = "happy"
)

const unknownResponse = "Hmm I couldn’t understand that. " +
	"Try saying something like 'Turn on the light', 'Remind me to study', or 'Tell me a joke'."

const favoriteGenre = "your favorite"

func DefaultPhrases() Phrases {
	return Phrases{
		Greetings: []string{
			"Hey hey!",
			"Hello sunshine!",
			"Hi there! How can I brighten your day?",
		},
		Farewells: []string{
			"Goodbye for now!",
			"Take care! I’ll be right here when you need me.",
			"Bye bye! Sending hugs.",
		},
		Jokes: []string{
			"Why don’t scientists trust atoms? Because they make up everything.",
			"Parallel lines have so much in common. It’s a shame they'll never meet.",
			"I told my computer I needed a break, and now it won’t stop sending me KitKats.",
		},
		Emotions: map[string]string{
			emotionSad:   "I sensed you're feeling down. Want to talk? Or maybe hear a joke?",
			emotionHappy: "Yesss I love seeing you happy!! Let’s keep this energy going.",
		},
	}
}

var ErrEmptyPool = errors.New("empty phrase pool")

func (p Phrases) Validate() error {
	pools := []struct {
		name string
		vals []string
	}{
		{"greetings", p.Greetings},
		{"farewells", p.Farewells},
		{"jokes", p.Jokes},
	}
	for _, pool := range pools {
		if len(pool.vals) == 0 {
			return fmt.Errorf("%s: %w", pool.name, ErrEmptyPool)
		}
		for i, v := range pool.vals {
			if v == "" {
				return fmt.Errorf("%s[%d] is blank", pool.name, i)
			}
		}
	}
	for _, e := range []string{emotionSad, emotionHappy} {
		if p.Emotions[e] == "" {
			return fmt.Errorf("missing emotion template %q", e)
		}
	}
	return nil
}

// LoadPhrases reads a YAML phrase file. Pools missing from the file keep
// their defaults.
func LoadPhrases(path string) (Phrases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Phrases{}, fmt.Errorf("read phrases: %w", err)
	}

	var file Phrases
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Phrases{}, fmt.Errorf("parse phrases %s: %w", path, err)
	}

	p := DefaultPhrases()
	if len(file.Greetings) > 0 {
		p.Greetings = file.Greetings
	}
	if len(file.Farewells) > 0 {
		p.Farewells = file.Farewells
	}
	if len(file.Jokes) > 0 {
		p.Jokes = file.Jokes
	}
	for k, v := range file.Emotions {
		p.Emotions[k] = v
	}

	if err := p.Validate(); err != nil {
		return Phrases{}, fmt.Errorf("phrases %s: %w", path, err)
	}
	return p, nil
}
