package core

import (
	"errors"
	"strings"
)

// Category is the closed set of transaction categories. Budgets and the
// suggestion heuristic operate on this set only.
type Category string

const (
	CategoryAllowance     Category = "allowance"
	CategoryTask          Category = "task"
	CategorySavings       Category = "savings"
	CategoryFood          Category = "food"
	CategoryToys          Category = "toys"
	CategoryClothes       Category = "clothes"
	CategoryEntertainment Category = "entertainment"
	CategorySchool        Category = "school"
	CategoryGifts         Category = "gifts"
	CategoryOther         Category = "other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryAllowance,
	CategoryTask,
	CategorySavings,
	CategoryFood,
	CategoryToys,
	CategoryClothes,
	CategoryEntertainment,
	CategorySchool,
	CategoryGifts,
	CategoryOther,
}

func (c Category) Validate() error {
	for _, known := range Categories {
		if c == known {
			return nil
		}
	}
	return errors.New("unknown category: " + string(c))
}

// categoryRule maps description keywords to a category. An empty direction
// matches both credits and debits.
type categoryRule struct {
	direction Direction
	keywords  []string
	category  Category
}

// suggestionRules is evaluated in order, first match wins. More specific
// rules come before broader ones.
var suggestionRules = []categoryRule{
	{Credit, []string{"allowance", "pocket money", "weekly pay"}, CategoryAllowance},
	{Credit, []string{"chore", "task", "reward", "job"}, CategoryTask},
	{Credit, []string{"birthday", "gift", "present", "grandma", "grandpa"}, CategoryGifts},
	{"", []string{"savings", "piggy bank", "save up"}, CategorySavings},
	{Debit, []string{"candy", "snack", "pizza", "burger", "ice cream", "lunch", "food"}, CategoryFood},
	{Debit, []string{"lego", "toy", "doll", "puzzle", "action figure"}, CategoryToys},
	{Debit, []string{"game", "movie", "cinema", "concert", "ticket", "arcade"}, CategoryEntertainment},
	{Debit, []string{"shirt", "shoes", "jacket", "clothes", "pants"}, CategoryClothes},
	{Debit, []string{"book", "pencil", "notebook", "school", "backpack"}, CategorySchool},
	{Debit, []string{"gift", "present"}, CategoryGifts},
}

// SuggestCategory guesses a category from a free-text description and the
// transaction direction. It is a pure function over the closed category set;
// unmatched text falls back to CategoryOther.
func SuggestCategory(text string, direction Direction) Category {
	t := strings.ToLower(text)
	for _, rule := range suggestionRules {
		if rule.direction != "" && rule.direction != direction {
			continue
		}
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.category
			}
		}
	}
	return CategoryOther
}
