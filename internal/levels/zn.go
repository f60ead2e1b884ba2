package levels

// znLevels are the CBOT 10-year T-Note technical levels the desk respects.
// Loaded here as the built-in default; deployments can override via config.
var znLevels = []string{
	"108'15", "108'23", "108'29",
	"109'02", "109'07", "109'11", "109'19", "109'21", "109'28",
	"110'02", "110'06", "110'09", "110'15", "110'20", "110'24", "110'31",
	"111'01", "111'05", "111'08", "111'14", "111'18", "111'26",
	"112'07", "112'11", "112'16", "112'19", "112'26",
	"113'01", "113'08", "113'11", "113'18", "113'25", "113'31",
	"114'06", "114'12", "114'18", "114'23", "114'30",
}

// DefaultZN returns the built-in ZN level table.
func DefaultZN() *Table {
	t, err := NewFromStrings(znLevels)
	if err != nil {
		panic("levels: built-in ZN table invalid: " + err.Error())
	}
	return t
}
