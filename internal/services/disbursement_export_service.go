package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/microvest/backoffice/internal/models"
)

// DisbursementExportService renders approved disbursements as ISO 20022
// pacs.008 credit transfers for the partner bank's clearing channel, and
// pacs.002 status reports for acknowledgements.
type DisbursementExportService struct {
	db        *sql.DB
	banks     *BankService
	currency  string
	bicfi     string
	validator *ValidationHelper
}

func NewDisbursementExportService(db *sql.DB, banks *BankService, currency, bicfi string) *DisbursementExportService {
	return &DisbursementExportService{
		db:        db,
		banks:     banks,
		currency:  currency,
		bicfi:     bicfi,
		validator: NewValidationHelper(),
	}
}

type disbursementRow struct {
	Loan       models.Loan
	ClientName string
}

// ExportDisbursement renders one loan's payout as pacs.008 XML
// @Summary Export disbursement as ISO 20022
// @Description Render a disbursed loan as a pacs.008 FIToFICustomerCreditTransfer message
// @Tags iso20022
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {object} ErrorResponse
// @Router /loans/{loanId}/export [get]
func (s *DisbursementExportService) ExportDisbursement(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	loanID, err := strconv.Atoi(chi.URLParam(r, "loanId"))
	if err != nil {
		SendErrorResponse(w, "Invalid loan id", http.StatusBadRequest, nil)
		return
	}

	row, err := s.disbursementByLoanID(r.Context(), loanID)
	if err != nil {
		s.sendExportError(w, err)
		return
	}

	doc, err := s.CreatePacs008(row)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := s.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "exported",
		"messageType": "pacs.008.001.08",
		"xml":         xmlData,
	})
}

// AcknowledgeDisbursement emits a pacs.002 status report for a disbursement
// @Summary Acknowledge disbursement
// @Description Render a pacs.002 payment status report (ACCP/RJCT) for a disbursed loan
// @Tags iso20022
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Param status query string false "Transaction status code" default(ACCP)
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 404 {object} ErrorResponse
// @Router /loans/{loanId}/export/status [get]
func (s *DisbursementExportService) AcknowledgeDisbursement(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	loanID, err := strconv.Atoi(chi.URLParam(r, "loanId"))
	if err != nil {
		SendErrorResponse(w, "Invalid loan id", http.StatusBadRequest, nil)
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = "ACCP"
	}

	row, err := s.disbursementByLoanID(r.Context(), loanID)
	if err != nil {
		s.sendExportError(w, err)
		return
	}

	doc, err := s.CreatePacs002(row, status)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := s.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "acknowledged",
		"messageType": "pacs.002.001.08",
		"xml":         xmlData,
	})
}

func (s *DisbursementExportService) disbursementByLoanID(ctx context.Context, loanID int) (*disbursementRow, error) {
	var row disbursementRow
	err := s.db.QueryRowContext(ctx, `
		SELECT l.id, l.principal, l.status, COALESCE(l.disbursement_bank_code, ''),
		       COALESCE(l.disbursement_account, ''), l.disbursed_at,
		       c.first_name || ' ' || c.last_name
		FROM loans l
		JOIN clients c ON c.id = l.client_id
		WHERE l.id = $1`, loanID,
	).Scan(&row.Loan.ID, &row.Loan.Principal, &row.Loan.Status, &row.Loan.DisbursementBankCode,
		&row.Loan.DisbursementAccount, &row.Loan.DisbursedAt, &row.ClientName)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "loan", Name: "id " + strconv.Itoa(loanID)}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "disbursementByLoanID", Err: err}
	}

	if row.Loan.Status != models.LoanActive && row.Loan.Status != models.LoanOverdue && row.Loan.Status != models.LoanClosed {
		return nil, validationErrorf("loan %d has not been disbursed", loanID)
	}
	if row.Loan.DisbursementBankCode == "" || row.Loan.DisbursementAccount == "" {
		return nil, validationErrorf("loan %d has no disbursement bank details", loanID)
	}
	return &row, nil
}

// CreatePacs008 builds the FIToFICustomerCreditTransfer for a disbursement.
func (s *DisbursementExportService) CreatePacs008(row *disbursementRow) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	if row.Loan.DisbursedAt != nil {
		settlementDate = *row.Loan.DisbursedAt
	}

	amount := float64(row.Loan.Principal) / 100

	endToEnd := fmt.Sprintf("LOAN-%d", row.Loan.ID)
	instrID := common.Max35Text(endToEnd)

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(s.currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &instrID,
					EndToEndId: common.Max35Text(endToEnd),
					TxId:       &instrID,
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(s.currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(s.bicfi)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text("Main Bank")}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(row.Loan.DisbursementBankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(row.ClientName)}[0],
				},
			},
		},
	}

	return doc, nil
}

// CreatePacs002 builds the payment status report for a disbursement.
func (s *DisbursementExportService) CreatePacs002(row *disbursementRow, status string) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	endToEnd := fmt.Sprintf("LOAN-%d", row.Loan.ID)
	original := common.Max35Text(endToEnd)

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &original,
				OrgnlEndToEndId: &original,
				OrgnlTxId:       &original,
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}

	return doc, nil
}

// ConvertToXML marshals an ISO 20022 document to an XML string.
func (s *DisbursementExportService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

func (s *DisbursementExportService) sendExportError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case IsNotFound(err):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	default:
		log.Printf("[ISO20022] Store error: %v", err)
		SendErrorResponse(w, "Export failed, please retry", http.StatusServiceUnavailable, nil)
	}
}
