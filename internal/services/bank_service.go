package services

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
)

// Bank is one entry in the disbursement bank directory. Codes are NIBSS
// institution codes; Logo is the SVG filename under the logos directory.
type Bank struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Logo     string `json:"-"`
	LogoData string `json:"logoData,omitempty"`
}

const (
	logosDir = "./static/bank-logos"
	demoSVG  = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M100 60c-22.1 0-40 17.9-40 40s17.9 40 40 40 40-17.9 40-40-17.9-40-40-40zm0 65c-13.8 0-25-11.2-25-25s11.2-25 25-25 25 11.2 25 25-11.2 25-25 25z" fill="#999"/><text x="100" y="170" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">BANK</text></svg>`
)

// Partner institutions loans can be disbursed to. Commercial banks first,
// then the microfinance banks most clients hold wallets with.
var disbursementBanks = []Bank{
	{Code: "044", Name: "Access Bank", Logo: "access-bank.svg"},
	{Code: "023", Name: "Citibank Nigeria", Logo: "citibank.svg"},
	{Code: "050", Name: "Ecobank Nigeria", Logo: "ecobank.svg"},
	{Code: "070", Name: "Fidelity Bank", Logo: "fidelity.svg"},
	{Code: "011", Name: "First Bank of Nigeria", Logo: "firstbank.svg"},
	{Code: "214", Name: "First City Monument Bank", Logo: "fcmb.svg"},
	{Code: "058", Name: "Guaranty Trust Bank", Logo: "gtbank.svg"},
	{Code: "301", Name: "Jaiz Bank", Logo: "jaiz.svg"},
	{Code: "082", Name: "Keystone Bank", Logo: "keystone.svg"},
	{Code: "076", Name: "Polaris Bank", Logo: "polaris.svg"},
	{Code: "101", Name: "Providus Bank", Logo: "providus.svg"},
	{Code: "221", Name: "Stanbic IBTC Bank", Logo: "stanbic.svg"},
	{Code: "068", Name: "Standard Chartered Bank", Logo: "standard-chartered.svg"},
	{Code: "232", Name: "Sterling Bank", Logo: "sterling.svg"},
	{Code: "032", Name: "Union Bank of Nigeria", Logo: "union.svg"},
	{Code: "033", Name: "United Bank For Africa", Logo: "uba.svg"},
	{Code: "215", Name: "Unity Bank", Logo: "unity.svg"},
	{Code: "035", Name: "Wema Bank", Logo: "wema.svg"},
	{Code: "057", Name: "Zenith Bank", Logo: "zenith.svg"},
	{Code: "50211", Name: "Kuda Bank", Logo: "kuda.svg"},
	{Code: "090267", Name: "Kuda Microfinance Bank", Logo: "kuda.svg"},
	{Code: "100002", Name: "Paga", Logo: "paga.svg"},
	{Code: "110005", Name: "Paycom", Logo: "paycom.svg"},
	{Code: "090405", Name: "Moniepoint MFB", Logo: "moniepoint.svg"},
	{Code: "090110", Name: "VFD Microfinance Bank", Logo: "vfd.svg"},
	{Code: "090286", Name: "Safe Haven MFB", Logo: "safehaven.svg"},
	{Code: "090270", Name: "AB Microfinance Bank", Logo: "ab-mfb.svg"},
	{Code: "090394", Name: "Nirsal MFB", Logo: "nirsal.svg"},
	{Code: "562", Name: "Ekondo Microfinance Bank", Logo: "ekondo.svg"},
	{Code: "125", Name: "Rubies MFB", Logo: "rubies.svg"},
}

type BankService struct {
	byCode map[string]Bank
}

func NewBankService() *BankService {
	byCode := make(map[string]Bank, len(disbursementBanks))
	for _, b := range disbursementBanks {
		byCode[b.Code] = b
	}
	return &BankService{byCode: byCode}
}

// LookupBank resolves a bank code to its directory entry.
func (bs *BankService) LookupBank(code string) (Bank, bool) {
	b, ok := bs.byCode[code]
	return b, ok
}

// KnownBankCode reports whether a disbursement bank code is in the directory.
func (bs *BankService) KnownBankCode(code string) bool {
	_, ok := bs.byCode[code]
	return ok
}

// GetAllBanks lists the disbursement bank directory
// @Summary List disbursement banks
// @Tags banks
// @Produce json
// @Success 200 {array} Bank
// @Router /banks [get]
func (bs *BankService) GetAllBanks(w http.ResponseWriter, r *http.Request) {
	banks := make([]Bank, len(disbursementBanks))
	copy(banks, disbursementBanks)

	for i := range banks {
		banks[i].LogoData = bs.loadLogo(banks[i].Logo)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	json.NewEncoder(w).Encode(banks)
}

func (bs *BankService) loadLogo(filename string) string {
	if filename != "" {
		path := filepath.Join(logosDir, filename)
		if data, err := os.ReadFile(path); err == nil {
			return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(data)
		}
	}
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(demoSVG))
}
