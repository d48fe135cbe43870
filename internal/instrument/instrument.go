package instrument

// Instrument is one equity tracked on the board.
type Instrument struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// merval is the fixed BYMA panel shown on the board, in display order.
var merval = []Instrument{
	{Symbol: "GGAL.BA", Name: "Grupo Financiero Galicia"},
	{Symbol: "YPFD.BA", Name: "YPF"},
	{Symbol: "PAMP.BA", Name: "Pampa Energía"},
	{Symbol: "BMA.BA", Name: "Banco Macro"},
	{Symbol: "TXAR.BA", Name: "Ternium Argentina"},
	{Symbol: "ALUA.BA", Name: "Aluar"},
	{Symbol: "CEPU.BA", Name: "Central Puerto"},
	{Symbol: "COME.BA", Name: "Sociedad Comercial del Plata"},
	{Symbol: "CRES.BA", Name: "Cresud"},
	{Symbol: "EDN.BA", Name: "Edenor"},
	{Symbol: "LOMA.BA", Name: "Loma Negra"},
	{Symbol: "METR.BA", Name: "Metrogas"},
	{Symbol: "SUPV.BA", Name: "Grupo Supervielle"},
	{Symbol: "TECO2.BA", Name: "Telecom Argentina"},
	{Symbol: "TGNO4.BA", Name: "Transportadora de Gas del Norte"},
	{Symbol: "TGSU2.BA", Name: "Transportadora de Gas del Sur"},
	{Symbol: "TRAN.BA", Name: "Transener"},
	{Symbol: "VALO.BA", Name: "Grupo Financiero Valores"},
	{Symbol: "BYMA.BA", Name: "Bolsas y Mercados Argentinos"},
	{Symbol: "MIRG.BA", Name: "Mirgor"},
}

// Merval returns a copy of the fixed instrument list.
func Merval() []Instrument {
	out := make([]Instrument, len(merval))
	copy(out, merval)
	return out
}
