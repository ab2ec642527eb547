// Package housing defines the feature schema of the house price model.
//
// The schema is versioned: any change to the field lists or the defaults
// changes the fingerprint stored in artifacts, and artifacts trained on a
// different schema are refused at load time.
package housing

import "github.com/YuminosukeSato/houseprice/preprocessing"

// SchemaVersion identifies the field lists and defaults below.
const SchemaVersion = "houseprice-v1"

// TargetColumn is the sale price column of the training data.
const TargetColumn = "SalePrice"

var numericFields = []string{
	"3SsnPorch",
	"BedroomAbvGr",
	"BsmtFullBath",
	"BsmtHalfBath",
	"BsmtUnfSF",
	"EnclosedPorch",
	"Fireplaces",
	"FullBath",
	"GarageArea",
	"GarageCars",
	"GarageYrBlt",
	"GrLivArea",
	"HalfBath",
	"KitchenAbvGr",
	"LotArea",
	"LotFrontage",
	"MasVnrArea",
	"OpenPorchSF",
	"ScreenPorch",
	"TotRmsAbvGrd",
	"TotalBsmtSF",
	"WoodDeckSF",
	"YearBuilt",
	"YearRemodAdd",
	"YrSold",
}

// MSSubClass, OverallCond and OverallQual are integer codes treated as
// categories.
var categoricalFields = []string{
	"BldgType",
	"BsmtCond",
	"BsmtExposure",
	"BsmtFinType1",
	"BsmtFinType2",
	"BsmtQual",
	"CentralAir",
	"Condition1",
	"Condition2",
	"Electrical",
	"ExterCond",
	"ExterQual",
	"Exterior1st",
	"Exterior2nd",
	"FireplaceQu",
	"Foundation",
	"Functional",
	"GarageCond",
	"GarageFinish",
	"GarageQual",
	"GarageType",
	"Heating",
	"HeatingQC",
	"HouseStyle",
	"KitchenQual",
	"LandContour",
	"LandSlope",
	"LotConfig",
	"LotShape",
	"MSSubClass",
	"MSZoning",
	"MasVnrType",
	"Neighborhood",
	"OverallCond",
	"OverallQual",
	"PavedDrive",
	"RoofMatl",
	"RoofStyle",
	"SaleCondition",
	"SaleType",
}

// Schema returns a fresh copy of the house feature schema.
func Schema() preprocessing.Schema {
	return preprocessing.Schema{
		Version:           SchemaVersion,
		NumericFields:     append([]string(nil), numericFields...),
		CategoricalFields: append([]string(nil), categoricalFields...),
		Defaults: map[string]any{
			"LotFrontage": 70.0,
			"GarageYrBlt": 1978.0,
			"MasVnrType":  "None",
			"Electrical":  "SBrkr",
			"Functional":  "Typ",
			"SaleType":    "WD",
			"MSZoning":    "RL",
			"Exterior1st": "VinylSd",
			"KitchenQual": "TA",
			"Exterior2nd": "VinylSd",
		},
	}
}
