package mailer

import "fmt"

const (
	SubjectWelcome       = "Welcome to Ethio-Home! Please verify your email"
	SubjectPasswordReset = "Your password reset token (valid for 60 min)"
	SubjectSaleReceipt   = "Your Ethio-Home purchase is confirmed"
	SubjectPropertySold  = "Your property has been sold"
	SubjectSubscription  = "Your Ethio-Home subscription is active"
)

func WelcomeBody(name, link string) string {
	return fmt.Sprintf(`Hi %s,<br/><br/>Welcome to Ethio-Home. Please confirm your email address:<br/><a href="%s">%s</a>`, name, link, link)
}

func PasswordResetBody(name, link string) string {
	return fmt.Sprintf(`Hi %s,<br/><br/>Forgot your password? Submit a PATCH request with your new password to:<br/>%s<br/>If you didn't forget your password, please ignore this email.`, name, link)
}

func SaleReceiptBody(name, txRef, amount, currency string) string {
	return fmt.Sprintf(`Hi %s,<br/><br/>We received your payment of %s %s.<br/>Reference: %s`, name, amount, currency, txRef)
}

func PropertySoldBody(propertyID, txRef, price string) string {
	return fmt.Sprintf(`Your property %s was sold for %s.<br/>Reference: %s`, propertyID, price, txRef)
}

func SubscriptionBody(name, plan, expiresAt string) string {
	return fmt.Sprintf(`Hi %s,<br/><br/>Your %s plan is active until %s.`, name, plan, expiresAt)
}

const SubjectPaymentFailed = "Your Ethio-Home payment did not go through"

func PaymentFailedBody(name, txRef, reason string) string {
	return fmt.Sprintf(`Hi %s,<br/><br/>Your payment %s was not completed (%s). You have not been charged for this purchase.`, name, txRef, reason)
}
